package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-query-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
)

var testNow = time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

// --- mocks ---

type stubSource struct {
	mu      sync.Mutex
	events  []domain.Event
	err     error
	windows []time.Duration
}

func (s *stubSource) FetchRecentEvents(_ context.Context, window time.Duration) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, window)
	return s.events, s.err
}

func (s *stubSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

type stubRecorder struct {
	mu      sync.Mutex
	records []domain.QueryRecord
	err     error
}

func (r *stubRecorder) RecordQuery(_ context.Context, rec domain.QueryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

// --- helpers ---

func testEvents() []domain.Event {
	return []domain.Event{
		{
			ID:         "us7000abcd",
			Magnitude:  domain.Mag(6.4),
			Place:      "120 km E of Miyako, Japan",
			OccurredAt: testNow.Add(-30 * time.Hour),
			Latitude:   39.64,
			Longitude:  143.45,
			DepthKM:    35,
			AlertLevel: domain.AlertOrange,
			Tsunami:    true,
		},
		{
			ID:         "ci40123",
			Magnitude:  domain.Mag(3.1),
			Place:      "8 km NW of Ridgecrest, CA",
			OccurredAt: testNow.Add(-2 * time.Hour),
		},
		{
			ID:         "us7000efgh",
			Magnitude:  domain.Mag(5.2),
			Place:      "Izu Islands, Japan region",
			OccurredAt: testNow.Add(-200 * time.Hour),
		},
	}
}

func newTestRouter(src domain.EventSource, rec domain.QueryRecorder) (*Router, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(src, rec, clockwork.NewFakeClockAt(testNow), logger, metrics), metrics
}

// --- tests ---

func TestHandle_StaticReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind Kind
		want string
	}{
		{"hello", "hello", KindGreeting, GreetingText},
		{"hi mixed case", "Hi!", KindGreeting, GreetingText},
		{"greeting with query", "hey, show quakes in Japan", KindGreeting, GreetingText},
		{"greeting wins over help", "hello, help", KindGreeting, GreetingText},
		{"greeting word inside a place name", "quakes near Hi Vista", KindGreeting, GreetingText},
		{"help", "help", KindHelp, HelpText},
		{"help with query", "HELP me find magnitude 6+ quakes", KindHelp, HelpText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubSource{events: testEvents()}
			r, _ := newTestRouter(src, nil)

			resp, err := r.Handle(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.want, resp.Text)
			assert.Zero(t, src.calls(), "static replies never touch the source")
		})
	}
}

func TestHandle_TriggerWordsMatchWholeWords(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, _ := newTestRouter(src, nil)

	for _, text := range []string{"this week in Chile", "quakes near Hawaii", "helpful quakes", "they shook"} {
		resp, err := r.Handle(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, KindQuery, resp.Kind, text)
	}
}

func TestHandle_Pipeline(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, metrics := newTestRouter(src, nil)

	resp, err := r.Handle(context.Background(), "Magnitude 6+ in Japan last week")
	require.NoError(t, err)

	assert.Equal(t, KindQuery, resp.Kind)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "us7000abcd", resp.Events[0].ID)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Japan", resp.Spec.Location)
	assert.InDelta(t, 168.0, resp.Spec.SinceHours, 1e-9)
	assert.Contains(t, resp.Text, "Found 1 earthquake in Japan in the last 7 days (M6.0+):")
	assert.Contains(t, resp.Text, "1. M6.4 - 120 km E of Miyako, Japan")
	assert.Contains(t, resp.Text, "[ORANGE ALERT] [TSUNAMI WARNING]")

	assert.Equal(t, []time.Duration{168 * time.Hour}, src.windows, "the window is passed as a fetch hint")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Queries.WithLabelValues("query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceReady))
}

func TestHandle_HugeWindowFetchesMonthFeed(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, _ := newTestRouter(src, nil)

	resp, err := r.Handle(context.Background(), "quakes in the last 200000 days")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{720 * time.Hour}, src.windows)
	assert.Equal(t, "all_month", usgs.FeedFor(src.windows[0]))
	assert.Equal(t, 3, resp.Total)
	assert.Contains(t, resp.Text, "Found 3 earthquakes in the last 30 days (any magnitude):")
}

func TestHandle_DefaultWindowExcludesOlderEvents(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, _ := newTestRouter(src, nil)

	resp, err := r.Handle(context.Background(), "recent earthquakes")
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "ci40123", resp.Events[0].ID)
}

func TestHandle_NoMatches(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, _ := newTestRouter(src, nil)

	resp, err := r.Handle(context.Background(), "earthquakes in Antarctica")
	require.NoError(t, err)
	assert.Equal(t, KindQuery, resp.Kind)
	assert.Empty(t, resp.Events)
	assert.Equal(t, "No earthquakes found in Antarctica in the last 24 hours (any magnitude).", resp.Text)
}

func TestHandle_SourceFailure(t *testing.T) {
	src := &stubSource{err: errors.New("dial tcp: connection refused")}
	r, metrics := newTestRouter(src, nil)

	resp, err := r.Handle(context.Background(), "quakes above 5")
	require.NoError(t, err)
	assert.Equal(t, KindUnavailable, resp.Kind)
	assert.Equal(t, UnavailableText, resp.Text)
	assert.NotContains(t, resp.Text, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Queries.WithLabelValues("unavailable")))
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestHandle_InvalidFilterState(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, metrics := newTestRouter(src, nil)
	r.parse = func(string) domain.FilterSpec {
		spec := domain.DefaultFilterSpec()
		spec.MagnitudeMin = domain.Mag(math.NaN())
		return spec
	}

	resp, err := r.Handle(context.Background(), "anything")
	require.ErrorIs(t, err, domain.ErrInvalidFilterState)
	assert.Equal(t, KindError, resp.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Queries.WithLabelValues("error")))

	assert.Equal(t, InternalErrorText, r.Route(context.Background(), "anything"))
}

func TestRoute_ReturnsText(t *testing.T) {
	r, _ := newTestRouter(&stubSource{events: testEvents()}, nil)

	assert.Equal(t, GreetingText, r.Route(context.Background(), "hello"))
	assert.Equal(t, HelpText, r.Route(context.Background(), "help"))
	assert.Contains(t, r.Route(context.Background(), "show 1 quake"), "Found 1 earthquake in the last 24 hours")
}

func TestHandle_RecordsQueries(t *testing.T) {
	rec := &stubRecorder{}
	r, _ := newTestRouter(&stubSource{events: testEvents()}, rec)

	_, err := r.Handle(context.Background(), "hello")
	require.NoError(t, err)
	_, err = r.Handle(context.Background(), "quakes in the last 2 days")
	require.NoError(t, err)

	require.Len(t, rec.records, 1, "only pipeline queries are recorded")
	got := rec.records[0]
	assert.Equal(t, "quakes in the last 2 days", got.Query)
	assert.Equal(t, "query", got.Kind)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, []string{"ci40123", "us7000abcd"}, got.EventIDs)
	assert.Equal(t, testNow, got.HandledAt)
}

func TestHandle_RecorderFailureDoesNotChangeReply(t *testing.T) {
	src := &stubSource{events: testEvents()}
	withFailing, metrics := newTestRouter(src, &stubRecorder{err: errors.New("broker down")})
	plain, _ := newTestRouter(src, nil)

	got, err := withFailing.Handle(context.Background(), "quakes this week")
	require.NoError(t, err)
	want, err := plain.Handle(context.Background(), "quakes this week")
	require.NoError(t, err)

	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryLogErrors))
}

func TestWarmAndReadiness(t *testing.T) {
	src := &stubSource{}
	r, _ := newTestRouter(src, nil)

	require.Error(t, r.CheckReadiness(context.Background()), "not ready before the first fetch")

	require.NoError(t, r.Warm(context.Background()))
	assert.NoError(t, r.CheckReadiness(context.Background()))
	assert.Equal(t, []time.Duration{24 * time.Hour}, src.windows)

	src.err = errors.New("feed down")
	require.Error(t, r.Warm(context.Background()))
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRoute_Concurrent(t *testing.T) {
	src := &stubSource{events: testEvents()}
	r, _ := newTestRouter(src, &stubRecorder{})

	want := r.Route(context.Background(), "magnitude 3+ last week")

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Route(context.Background(), "magnitude 3+ last week")
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, want, got, fmt.Sprintf("goroutine %d", i))
	}
}
