package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/quake-query-service/internal/adapter/http"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/router"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockResponder struct {
	resp  router.Response
	err   error
	texts []string
}

func (m *mockResponder) Handle(_ context.Context, text string) (router.Response, error) {
	m.texts = append(m.texts, text)
	return m.resp, m.err
}

var fixedNow = time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

func queryResponse() router.Response {
	return router.Response{
		Kind: router.KindQuery,
		Text: "Found 3 earthquakes in the last 24 hours (any magnitude), showing 1:",
		Events: []domain.Event{{
			ID:         "us7000abcd",
			Magnitude:  domain.Mag(6.4),
			Place:      "120 km E of Miyako, Japan",
			OccurredAt: fixedNow.Add(-time.Hour),
		}},
		Total: 3,
		Spec:  domain.DefaultFilterSpec(),
	}
}

func newTestServer(responder httpadapter.Responder, readyErr error) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", responder, &mockReadiness{err: readyErr}, clockwork.NewFakeClockAt(fixedNow), logger)
}

func do(srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func TestRootReturnsServiceInfo(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Earthquake Query Service", body["name"])
	assert.Equal(t, "active", body["status"])
}

func TestUnknownPathReturns404(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, fmt.Errorf("event source not ready")), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestA2A(t *testing.T) {
	responder := &mockResponder{resp: queryResponse()}
	srv := newTestServer(responder, nil)

	rec := do(srv, http.MethodPost, "/a2a/agent/earthquake",
		`{"prompt":"magnitude 6+ in Japan","conversationId":"conv-1","userId":"u-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"magnitude 6+ in Japan"}, responder.texts)
	assert.JSONEq(t, `{
		"response": "Found 3 earthquakes in the last 24 hours (any magnitude), showing 1:",
		"conversationId": "conv-1",
		"metadata": {
			"event_count": 1,
			"total_matched": 3,
			"kind": "query",
			"agent_type": "earthquake_monitor",
			"timestamp": "2024-04-26T12:00:00Z"
		}
	}`, rec.Body.String())
}

func TestA2A_MessageFieldFallback(t *testing.T) {
	responder := &mockResponder{resp: router.Response{Kind: router.KindHelp, Text: router.HelpText}}
	srv := newTestServer(responder, nil)

	rec := do(srv, http.MethodPost, "/a2a/agent/earthquake", `{"message":"help"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"help"}, responder.texts)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["conversationId"])
}

func TestA2A_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prompt":`},
		{"wrong type", `{"prompt":42}`},
		{"empty prompt", `{"prompt":"   "}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &mockResponder{}
			rec := do(newTestServer(responder, nil), http.MethodPost, "/a2a/agent/earthquake", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, responder.texts)
		})
	}
}

func TestA2A_InternalError(t *testing.T) {
	responder := &mockResponder{err: fmt.Errorf("route query: %w", domain.ErrInvalidFilterState)}
	rec := do(newTestServer(responder, nil), http.MethodPost, "/a2a/agent/earthquake", `{"prompt":"anything"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "invalid filter state")
}

func TestChat(t *testing.T) {
	responder := &mockResponder{resp: queryResponse()}
	rec := do(newTestServer(responder, nil), http.MethodPost, "/chat", `{"message":"recent quakes","user_id":"u-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Response string         `json:"response"`
		Events   []domain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queryResponse().Text, body.Response)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "us7000abcd", body.Events[0].ID)
}

func TestChat_StaticReplyOmitsEvents(t *testing.T) {
	responder := &mockResponder{resp: router.Response{Kind: router.KindGreeting, Text: router.GreetingText}}
	rec := do(newTestServer(responder, nil), http.MethodPost, "/chat", `{"message":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"events"`)
}

func TestChat_BadJSON(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodPost, "/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_MethodNotAllowed(t *testing.T) {
	rec := do(newTestServer(&mockResponder{}, nil), http.MethodGet, "/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
