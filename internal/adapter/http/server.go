package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/router"
)

const (
	serviceName    = "Earthquake Query Service"
	serviceVersion = "1.0.0"
	agentType      = "earthquake_monitor"

	maxBodyBytes = 64 << 10
)

// Responder answers a chat message. *router.Router implements it.
type Responder interface {
	Handle(ctx context.Context, text string) (router.Response, error)
}

// Server exposes the chat endpoints alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	responder  Responder
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /, /a2a/agent/earthquake, /chat,
// /healthz, /readyz, and /metrics routes.
func NewServer(addr string, responder Responder, ready sharedobs.ReadinessChecker, clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		responder: responder,
		clock:     clock,
		logger:    logger,
	}

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /a2a/agent/earthquake", s.handleA2A)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type serviceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, serviceInfo{
		Name:        serviceName,
		Version:     serviceVersion,
		Status:      "active",
		Description: "Natural-language queries over the USGS real-time earthquake feed",
	})
}

// a2aRequest accepts "prompt" and, for older clients, "message".
type a2aRequest struct {
	Prompt         string         `json:"prompt"`
	Message        string         `json:"message"`
	ConversationID *string        `json:"conversationId"`
	UserID         string         `json:"userId"`
	Context        map[string]any `json:"context"`
}

type a2aResponse struct {
	Response       string      `json:"response"`
	ConversationID *string     `json:"conversationId"`
	Metadata       a2aMetadata `json:"metadata"`
}

type a2aMetadata struct {
	EventCount   int    `json:"event_count"`
	TotalMatched int    `json:"total_matched"`
	Kind         string `json:"kind"`
	AgentType    string `json:"agent_type"`
	Timestamp    string `json:"timestamp"`
}

func (s *Server) handleA2A(w http.ResponseWriter, r *http.Request) {
	var req a2aRequest
	if !s.decode(w, r, &req) {
		return
	}
	text := req.Prompt
	if strings.TrimSpace(text) == "" {
		text = req.Message
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resp, ok := s.respond(w, r, text, "conversation_id", deref(req.ConversationID))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a2aResponse{
		Response:       resp.Text,
		ConversationID: req.ConversationID,
		Metadata: a2aMetadata{
			EventCount:   len(resp.Events),
			TotalMatched: resp.Total,
			Kind:         string(resp.Kind),
			AgentType:    agentType,
			Timestamp:    s.clock.Now().UTC().Format(time.RFC3339),
		},
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

type chatResponse struct {
	Response string         `json:"response"`
	Events   []domain.Event `json:"events,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, ok := s.respond(w, r, req.Message, "channel_id", req.ChannelID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: resp.Text, Events: resp.Events})
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Debug("bad request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// respond runs text through the responder, answering 500 on failure.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, text string, attrs ...any) (router.Response, bool) {
	resp, err := s.responder.Handle(r.Context(), text)
	if err != nil {
		s.logger.Error("message handling failed", append(attrs, "path", r.URL.Path, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal error")
		return router.Response{}, false
	}
	return resp, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
