package metrics_test

import (
	"testing"
	"time"

	"github.com/mediascout/go-mediascout/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.CacheSet()
	m.Purged(3)
	m.Purged(0)
	m.Request("TMDB", metrics.OutcomeFetched)
	m.Request("TMDB", metrics.OutcomeCached)
	m.Request("TMDB", metrics.OutcomeCached)
	m.Fetch("TMDB", 20*time.Millisecond)
	m.Queue("TMDB", 7, 2)

	require.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheSets))
	require.Equal(t, 3.0, testutil.ToFloat64(m.CachePurged))
	require.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("TMDB", metrics.OutcomeCached)))
	require.Equal(t, 7.0, testutil.ToFloat64(m.QueuePending.WithLabelValues("TMDB")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.QueueRunning.WithLabelValues("TMDB")))

	count, err := testutil.GatherAndCount(reg, "test_fetch_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.CacheHit()
		m.CacheMiss()
		m.CacheSet()
		m.Purged(1)
		m.Request("x", metrics.OutcomeFailed)
		m.Fetch("x", time.Second)
		m.Queue("x", 1, 1)
	})
}
