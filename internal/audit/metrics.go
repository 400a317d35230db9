package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes audit pipeline counters on the default Prometheus registry.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	pollAttempts  prometheus.Counter
	fetchDuration prometheus.Histogram
}

// InitMetrics registers the audit metrics and attaches them to the client.
// Call once at startup; promauto panics on duplicate registration.
func InitMetrics(c *Client) *Metrics {
	m := &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_requests_total",
			Help: "Audit requests by outcome (success, error, cache_hit, breaker_open)",
		}, []string{"outcome"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "audit_cache_hits_total",
			Help: "Audit cache hits",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "audit_cache_misses_total",
			Help: "Audit cache misses",
		}),
		pollAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "audit_poll_attempts_total",
			Help: "List page poll attempts across all audit runs",
		}),
		fetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_fetch_duration_seconds",
			Help:    "End-to-end duration of uncached audit fetches",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "audit_breaker_failures",
		Help: "Consecutive upstream failures recorded by the circuit breaker",
	}, func() float64 {
		return float64(c.BreakerFailures())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "audit_cache_entries",
		Help: "Entries currently held in the audit cache, expired included",
	}, func() float64 {
		return float64(c.cache.Len())
	})

	c.metrics = m
	return m
}

// The client calls these unconditionally; a client without InitMetrics (tests)
// just no-ops.

func (c *Client) countRequest(outcome string) {
	if c.metrics != nil {
		c.metrics.requestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) countCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.cacheHits.Inc()
	} else {
		c.metrics.cacheMisses.Inc()
	}
}

func (c *Client) countPoll() {
	if c.metrics != nil {
		c.metrics.pollAttempts.Inc()
	}
}

func (c *Client) observeDuration(d time.Duration) {
	if c.metrics != nil {
		c.metrics.fetchDuration.Observe(d.Seconds())
	}
}
