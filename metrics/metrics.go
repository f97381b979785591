// Package metrics provides Prometheus metrics for the provider cache and
// request coordinators.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for RequestsTotal.
const (
	OutcomeCached  = "cached"
	OutcomeFetched = "fetched"
	OutcomeShared  = "shared"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors shared by a cache and its coordinators. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSets   prometheus.Counter
	CachePurged prometheus.Counter

	// Request metrics, labeled by provider source.
	RequestsTotal *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec

	// Queue metrics, labeled by provider source.
	QueuePending *prometheus.GaugeVec
	QueueRunning *prometheus.GaugeVec
}

// New creates a Metrics instance with the given namespace. Collectors are
// registered with reg. If reg is nil the collectors are created but not
// registered anywhere.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Number of cache reads that returned a live entry",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Number of cache reads that found no live entry",
		}),
		CacheSets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Number of cache writes",
		}),
		CachePurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "purged_total",
			Help:      "Number of expired or corrupt entries removed",
		}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Provider requests by source and outcome",
		}, []string{"source", "outcome"}),
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of provider fetches in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),

		QueuePending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Tasks waiting for a free slot",
		}, []string{"source"}),
		QueueRunning: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "running",
			Help:      "Tasks currently executing",
		}, []string{"source"}),
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) CacheSet() {
	if m != nil {
		m.CacheSets.Inc()
	}
}

func (m *Metrics) Purged(n int) {
	if m != nil && n > 0 {
		m.CachePurged.Add(float64(n))
	}
}

// Request records one coordinator request result.
func (m *Metrics) Request(source, outcome string) {
	if m != nil {
		m.RequestsTotal.WithLabelValues(source, outcome).Inc()
	}
}

// Fetch records the duration of one underlying fetch.
func (m *Metrics) Fetch(source string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// Queue sets the queue gauges for source.
func (m *Metrics) Queue(source string, pending, running int) {
	if m != nil {
		m.QueuePending.WithLabelValues(source).Set(float64(pending))
		m.QueueRunning.WithLabelValues(source).Set(float64(running))
	}
}
