// Package router dispatches a chat message to a canned reply or to the
// parse, filter and format pipeline.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/filter"
	"github.com/couchcryptid/quake-query-service/internal/format"
	"github.com/couchcryptid/quake-query-service/internal/observability"
	"github.com/couchcryptid/quake-query-service/internal/query"
)

// Kind classifies how a message was answered.
type Kind string

const (
	KindGreeting    Kind = "greeting"
	KindHelp        Kind = "help"
	KindQuery       Kind = "query"
	KindUnavailable Kind = "unavailable"
	KindError       Kind = "error"
)

const (
	GreetingText = "Hello! I report recent earthquakes from the USGS feed.\n\n" +
		"Try:\n" +
		"- show 5 earthquakes above magnitude 5 in the last 24 hours\n" +
		"- earthquakes in Japan in the last 7 days\n" +
		"- magnitude 6+ today near Indonesia"

	HelpText = "I can filter by:\n" +
		"- Magnitude (e.g. '>=5', 'm5+', 'above 4.5', 'between 4 and 6')\n" +
		"- Time (e.g. 'last 24 hours', 'past 7 days', 'today')\n" +
		"- Location (e.g. 'in Japan', 'near California')\n" +
		"- Limit (e.g. 'show 10')"

	UnavailableText = "Earthquake data is temporarily unavailable. Please try again in a moment or type 'help'."

	// InternalErrorText is what Route returns when Handle fails.
	InternalErrorText = "Sorry, something went wrong while answering that. Please try again or type 'help'."
)

const recordTimeout = 2 * time.Second

var (
	greetingRe = regexp.MustCompile(`(?i)\b(?:hello|hi|hey)\b`)
	helpRe     = regexp.MustCompile(`(?i)\bhelp\b`)
)

// Response is the structured outcome of one message.
type Response struct {
	Kind   Kind
	Text   string
	Events []domain.Event
	Total  int
	Spec   domain.FilterSpec
}

// Router answers chat messages. It holds no per-message state and is safe for
// concurrent use.
type Router struct {
	source   domain.EventSource
	recorder domain.QueryRecorder
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	parse func(string) domain.FilterSpec
}

// New creates a Router. recorder may be nil to disable the query audit log.
func New(source domain.EventSource, recorder domain.QueryRecorder, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		source:   source,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		parse:    query.Parse,
	}
}

// Route answers text with a reply suitable for showing to a user.
func (r *Router) Route(ctx context.Context, text string) string {
	resp, err := r.Handle(ctx, text)
	if err != nil {
		return InternalErrorText
	}
	return resp.Text
}

// Handle answers text. Greetings and help requests short-circuit; anything
// else is parsed, filtered against the source and formatted. A source failure
// yields a KindUnavailable response, not an error. The only error returned
// wraps domain.ErrInvalidFilterState.
func (r *Router) Handle(ctx context.Context, text string) (Response, error) {
	start := r.clock.Now()
	defer func() {
		r.metrics.QueryDuration.Observe(r.clock.Since(start).Seconds())
	}()

	switch {
	case greetingRe.MatchString(text):
		r.metrics.Queries.WithLabelValues(string(KindGreeting)).Inc()
		return Response{Kind: KindGreeting, Text: GreetingText}, nil
	case helpRe.MatchString(text):
		r.metrics.Queries.WithLabelValues(string(KindHelp)).Inc()
		return Response{Kind: KindHelp, Text: HelpText}, nil
	}

	spec := r.parse(text)
	events, err := r.source.FetchRecentEvents(ctx, spec.Window())
	if err != nil {
		r.setReady(false)
		r.metrics.Queries.WithLabelValues(string(KindUnavailable)).Inc()
		r.logger.Warn("event source unavailable", "error", err, "since_hours", spec.SinceHours)
		return Response{Kind: KindUnavailable, Text: UnavailableText, Spec: spec}, nil
	}
	r.setReady(true)

	result, err := filter.Apply(events, spec, r.clock.Now())
	if err != nil {
		r.metrics.Queries.WithLabelValues(string(KindError)).Inc()
		r.logger.Error("filter invariant violated", "error", err, "query", text)
		return Response{Kind: KindError, Spec: spec}, fmt.Errorf("route query: %w", err)
	}

	r.metrics.Queries.WithLabelValues(string(KindQuery)).Inc()
	r.metrics.EventsMatched.Observe(float64(result.Total))
	r.logger.Debug("query answered",
		"since_hours", result.Spec.SinceHours,
		"location", result.Spec.Location,
		"total", result.Total,
		"event_count", result.Shown(),
	)
	r.record(ctx, text, result)

	return Response{
		Kind:   KindQuery,
		Text:   format.Format(result),
		Events: result.Events,
		Total:  result.Total,
		Spec:   result.Spec,
	}, nil
}

// record publishes an audit entry. Failures are logged and counted only.
func (r *Router) record(ctx context.Context, text string, result domain.FilteredResult) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	rec := domain.NewQueryRecord(text, string(KindQuery), result, r.clock.Now())
	if err := r.recorder.RecordQuery(ctx, rec); err != nil {
		r.metrics.QueryLogErrors.Inc()
		r.logger.Warn("query record failed", "query_id", rec.ID, "error", err)
	}
}

// Warm fetches the default window once so the service can report ready
// before the first message arrives.
func (r *Router) Warm(ctx context.Context) error {
	_, err := r.source.FetchRecentEvents(ctx, domain.DefaultFilterSpec().Window())
	r.setReady(err == nil)
	if err != nil {
		return fmt.Errorf("warm event source: %w", err)
	}
	return nil
}

// CheckReadiness reports an error until the most recent feed fetch succeeded.
func (r *Router) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("event source not ready")
	}
	return nil
}

func (r *Router) setReady(ok bool) {
	r.ready.Store(ok)
	if ok {
		r.metrics.SourceReady.Set(1)
	} else {
		r.metrics.SourceReady.Set(0)
	}
}
