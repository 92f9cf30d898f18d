package usgs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
)

// Summary feed names, smallest window first.
const (
	FeedHour  = "all_hour"
	FeedDay   = "all_day"
	FeedWeek  = "all_week"
	FeedMonth = "all_month"
)

// ErrUnexpectedStatus is returned for non-200 feed responses.
var ErrUnexpectedStatus = errors.New("usgs: unexpected status")

// FeedFor returns the smallest summary feed whose window covers window.
// Anything longer than a week gets the month feed, which is as far back as
// the summary feeds go. A non-positive window is treated as unbounded.
func FeedFor(window time.Duration) string {
	switch {
	case window <= 0:
		return FeedMonth
	case window <= time.Hour:
		return FeedHour
	case window <= 24*time.Hour:
		return FeedDay
	case window <= 7*24*time.Hour:
		return FeedWeek
	default:
		return FeedMonth
	}
}

// Client implements domain.EventSource against the USGS GeoJSON summary feeds.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger

	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewClient creates a feed client. baseURL is the summary directory, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     newHTTPClient(timeout),
		metrics:        metrics,
		logger:         logger,
		attempts:       3,
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     2 * time.Second,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// FetchRecentEvents downloads the smallest feed covering window.
func (c *Client) FetchRecentEvents(ctx context.Context, window time.Duration) ([]domain.Event, error) {
	feed := FeedFor(window)
	start := time.Now()

	events, err := c.fetchWithRetry(ctx, feed)

	c.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedFetches.WithLabelValues(feed, "error").Inc()
		return nil, err
	}
	c.metrics.FeedFetches.WithLabelValues(feed, "success").Inc()
	c.logger.Debug("feed fetched", "feed", feed, "event_count", len(events))
	return events, nil
}

// fetchWithRetry retries network errors and 5xx responses with exponential
// backoff. Client errors and decode failures are returned immediately.
func (c *Client) fetchWithRetry(ctx context.Context, feed string) ([]domain.Event, error) {
	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		events, err := c.fetch(ctx, feed)
		if err == nil {
			return events, nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) || attempt == c.attempts {
			break
		}
		c.logger.Warn("feed fetch failed, retrying", "feed", feed, "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, c.maxBackoff)
	}
	return nil, lastErr
}

func (c *Client) fetch(ctx context.Context, feed string) ([]domain.Event, error) {
	u := fmt.Sprintf("%s/%s.geojson", c.baseURL, feed)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s feed request: %w", feed, err)
		}
		return nil, &retryableError{fmt.Errorf("%s feed request: %w", feed, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: %s feed status %d: %s", ErrUnexpectedStatus, feed, resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			return nil, &retryableError{err}
		}
		return nil, err
	}

	events, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", feed, err)
	}
	return events, nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
