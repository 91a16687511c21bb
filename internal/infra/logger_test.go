package infra

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"lifelink/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		cfg  config.LogConfig
		want zapcore.Level
	}{
		{config.LogConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel},
		{config.LogConfig{Level: "warn", Format: "console"}, zapcore.WarnLevel},
		{config.LogConfig{Level: "loud"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		log, err := NewLogger(tt.cfg)
		if err != nil {
			t.Fatalf("NewLogger(%+v): %v", tt.cfg, err)
		}
		if !log.Core().Enabled(tt.want) {
			t.Fatalf("level %s should be enabled for %+v", tt.want, tt.cfg)
		}
		if tt.want > zapcore.DebugLevel && log.Core().Enabled(tt.want-1) {
			t.Fatalf("level %s should be disabled for %+v", tt.want-1, tt.cfg)
		}
	}
}
