package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the query service.
type Metrics struct {
	Queries       *prometheus.CounterVec // labels: kind={greeting,help,query,unavailable,error}
	QueryDuration prometheus.Histogram
	EventsMatched prometheus.Histogram
	SourceReady   prometheus.Gauge

	// Feed metrics.
	FeedFetches       *prometheus.CounterVec   // labels: feed={all_hour,...}, outcome={success,error}
	FeedFetchDuration *prometheus.HistogramVec // labels: feed
	FeedCache         *prometheus.CounterVec   // labels: result={hit,miss}

	QueryLogErrors prometheus.Counter
}

var (
	eventsMatchedBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000}
	durationBuckets      = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10}
)

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all service metrics and registers them with reg.
// Short-lived tools pass their own registry to keep the default one clean.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.Queries,
		m.QueryDuration,
		m.EventsMatched,
		m.SourceReady,
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedCache,
		m.QueryLogErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_query",
			Name:      "queries_total",
			Help:      "Queries routed, by outcome kind.",
		}, []string{"kind"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_query",
			Name:      "query_duration_seconds",
			Help:      "End-to-end duration of a routed query, including the feed fetch.",
			Buckets:   durationBuckets,
		}),
		EventsMatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_query",
			Name:      "events_matched",
			Help:      "Events matching a query before truncation to its limit.",
			Buckets:   eventsMatchedBuckets,
		}),
		SourceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_query",
			Name:      "source_ready",
			Help:      "1 when the last feed fetch succeeded, 0 otherwise.",
		}),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_query",
			Name:      "feed_fetches_total",
			Help:      "USGS feed requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_query",
			Name:      "feed_fetch_duration_seconds",
			Help:      "USGS feed request duration in seconds.",
			Buckets:   durationBuckets,
		}, []string{"feed"}),
		FeedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_query",
			Name:      "feed_cache_total",
			Help:      "Feed snapshot cache lookups by result.",
		}, []string{"result"}),
		QueryLogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_query",
			Name:      "query_log_errors_total",
			Help:      "Failed writes to the query audit log.",
		}),
	}
}
