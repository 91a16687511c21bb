// README: Prometheus collectors for the cascade, the matching pipeline and the HTTP adapter.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifelink"

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry        *prometheus.Registry
	handler         http.Handler
	cascadeEvents   *prometheus.CounterVec
	rankingDuration prometheus.Histogram
	eligibleDonors  prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	cascadeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_events_total",
		Help:      "Cascade steps by event (notified, accepted, rejected, timed_out, queue_exhausted, ...)",
	}, []string{"event"})

	rankingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ranking_duration_seconds",
		Help:      "Time spent ranking eligible donors for one request",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	eligibleDonors := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "eligible_donors",
		Help:      "Eligible donors found per matching run",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(
		cascadeEvents,
		rankingDuration,
		eligibleDonors,
		requestDuration,
		collectors.NewGoCollector(),
	)

	return &Collector{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		cascadeEvents:   cascadeEvents,
		rankingDuration: rankingDuration,
		eligibleDonors:  eligibleDonors,
		requestDuration: requestDuration,
	}
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return c.handler
}

func (c *Collector) CascadeEvent(event string) {
	if c == nil {
		return
	}
	c.cascadeEvents.WithLabelValues(event).Inc()
}

func (c *Collector) ObserveRanking(d time.Duration) {
	if c == nil {
		return
	}
	c.rankingDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveEligible(n int) {
	if c == nil {
		return
	}
	c.eligibleDonors.Observe(float64(n))
}

// ObserveHTTPRequest records one handled request. path should be the route
// template, not the raw URL.
func (c *Collector) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}
