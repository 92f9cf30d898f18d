package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.Queries.WithLabelValues("query").Inc()
	m.FeedFetches.WithLabelValues("all_day", "success").Inc()
	m.FeedCache.WithLabelValues("hit").Inc()
	m.FeedFetchDuration.WithLabelValues("all_day").Observe(0.2)
	m.QueryLogErrors.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Subset(t, names, []string{
		"quake_query_queries_total",
		"quake_query_query_duration_seconds",
		"quake_query_events_matched",
		"quake_query_source_ready",
		"quake_query_feed_fetches_total",
		"quake_query_feed_fetch_duration_seconds",
		"quake_query_feed_cache_total",
		"quake_query_query_log_errors_total",
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("query")))
}

func TestNewMetricsWithRegistry_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsWithRegistry(prometheus.NewRegistry())
		NewMetricsWithRegistry(prometheus.NewRegistry())
	})
}
