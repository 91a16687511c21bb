package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeEventCounts(t *testing.T) {
	c := NewCollector()
	c.CascadeEvent("notified")
	c.CascadeEvent("notified")
	c.CascadeEvent("timed_out")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cascadeEvents.WithLabelValues("notified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cascadeEvents.WithLabelValues("timed_out")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.cascadeEvents.WithLabelValues("accepted")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	c := NewCollector()
	c.CascadeEvent("accepted")
	c.ObserveRanking(2 * time.Millisecond)
	c.ObserveEligible(7)
	c.ObserveHTTPRequest(http.MethodPost, "/api/requests", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`lifelink_cascade_events_total{event="accepted"} 1`,
		"lifelink_ranking_duration_seconds_count 1",
		"lifelink_eligible_donors_sum 7",
		`lifelink_http_request_duration_seconds_count{method="POST",path="/api/requests",status="201"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.CascadeEvent("notified")
	c.ObserveRanking(time.Millisecond)
	c.ObserveEligible(1)
	c.ObserveHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
