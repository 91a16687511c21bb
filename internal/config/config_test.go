package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 90, cfg.Matching.CooldownDays)
	assert.Equal(t, 25.0, cfg.Matching.DashboardRadiusKm)
	assert.Equal(t, 50.0, cfg.Matching.BroadcastRadiusKm)
	assert.Equal(t, 30*time.Minute, cfg.Matching.ResponseWindow)
	assert.Equal(t, 50, cfg.Matching.PointsPerDonation)
	assert.Equal(t, 5*time.Second, cfg.Matching.TimeoutPollInterval)
	assert.True(t, cfg.Matching.UseGeoIndex)
	assert.Equal(t, 50.0, cfg.Matching.FacilityRadiusKm)
	assert.Equal(t, time.Minute, cfg.Matching.IndexCheckInterval)
	assert.Equal(t, [4]float64{0.3, 0.3, 0.2, 0.2}, cfg.Ranking.Weights)
	assert.Equal(t, 90, cfg.Ranking.RecencyCapDays)
	assert.Equal(t, 50.0, cfg.Ranking.UnknownDistanceKm)
	assert.Equal(t, "lifelink-admins", cfg.Firebase.AdminTopic)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIFELINK_HTTP_ADDR", ":9090")
	t.Setenv("LIFELINK_REDIS_ADDR", "redis:6379")
	t.Setenv("LIFELINK_MATCHING_RESPONSE_WINDOW", "45m")
	t.Setenv("LIFELINK_MATCHING_USE_GEO_INDEX", "false")
	t.Setenv("LIFELINK_RANKING_WEIGHTS", "0.4, 0.2, 0.2, 0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 45*time.Minute, cfg.Matching.ResponseWindow)
	assert.False(t, cfg.Matching.UseGeoIndex)
	assert.Equal(t, [4]float64{0.4, 0.2, 0.2, 0.2}, cfg.Ranking.Weights)
}

func TestParseWeights(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"default", "0.3,0.3,0.2,0.2", false},
		{"too few", "0.5,0.5", true},
		{"not a number", "0.3,x,0.2,0.2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWeights(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWeights(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}
