package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/runner"
	"github.com/go-chi/chi/v5"
)

// Engine is the part of the handoff engine the HTTP surface drives.
type Engine interface {
	Send(ctx context.Context, threadID, userID, text string) (*domain.TurnResult, error)
	Resume(ctx context.Context, threadID string, decision domain.Decision) (*domain.TurnResult, error)
	Inspect(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]string, error)
	Pending(ctx context.Context) ([]*domain.Checkpoint, error)
}

var _ Engine = (*handoff.Engine)(nil)

// Server serves the thread API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreams shares a StreamManager, typically the one fed by the diff
// middleware of the checkpoint store.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(server.logger)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", server.ListThreads)
		r.Post("/", server.StartThread)
		r.Route("/{threadId}", func(r chi.Router) {
			r.Get("/", server.GetThread)
			r.Delete("/", server.DeleteThread)
			r.Post("/messages", server.SendMessage)
			r.Post("/approval", server.DecideApproval)
			r.Get("/events", server.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Handoff API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// MessageRequest is the body of a user message.
type MessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// ThreadSummary is one entry of the thread listing.
type ThreadSummary struct {
	ThreadID  string           `json:"thread_id"`
	Status    domain.Status    `json:"status"`
	Active    domain.HandlerID `json:"active,omitempty"`
	Version   int64            `json:"version"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func summarize(cp *domain.Checkpoint) ThreadSummary {
	return ThreadSummary{
		ThreadID:  cp.ThreadID,
		Status:    cp.Status,
		Active:    cp.State.Active(),
		Version:   cp.Version,
		UpdatedAt: cp.UpdatedAt,
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "handoff-http",
		"version":     strings.TrimSpace(handoff.Version),
		"api_version": apiVersion,
	}, s.logger)
}

// StartThread handles POST /threads: the first message of a new thread.
func (s *Server) StartThread(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, "")
}

// SendMessage handles POST /threads/{threadId}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, chi.URLParam(r, "threadId"))
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, threadID string) {
	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	text, err := runner.SanitizeInput(body.Text)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid input: %v", err), err)
		return
	}
	if strings.TrimSpace(text) == "" {
		s.fail(w, http.StatusBadRequest, "Message text is required", nil)
		return
	}

	res, err := s.Engine.Send(r.Context(), threadID, body.UserID, text)
	if err != nil {
		s.engineError(w, "Send", err)
		return
	}
	writeJSON(w, http.StatusOK, res, s.logger)
}

// DecideApproval handles POST /threads/{threadId}/approval.
func (s *Server) DecideApproval(w http.ResponseWriter, r *http.Request) {
	var decision domain.Decision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if decision.Reason != "" {
		clean, err := runner.SanitizeInput(decision.Reason)
		if err != nil {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid reason: %v", err), err)
			return
		}
		decision.Reason = clean
	}

	res, err := s.Engine.Resume(r.Context(), chi.URLParam(r, "threadId"), decision)
	if err != nil {
		s.engineError(w, "Resume", err)
		return
	}
	writeJSON(w, http.StatusOK, res, s.logger)
}

// GetThread handles GET /threads/{threadId}.
func (s *Server) GetThread(w http.ResponseWriter, r *http.Request) {
	cp, err := s.Engine.Inspect(r.Context(), chi.URLParam(r, "threadId"))
	if err != nil {
		s.engineError(w, "Inspect", err)
		return
	}
	writeJSON(w, http.StatusOK, cp, s.logger)
}

// DeleteThread handles DELETE /threads/{threadId}.
func (s *Server) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "threadId")); err != nil {
		s.engineError(w, "Delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListThreads handles GET /threads. Unreadable threads are left out.
func (s *Server) ListThreads(w http.ResponseWriter, r *http.Request) {
	var checkpoints []*domain.Checkpoint
	switch status := r.URL.Query().Get("status"); status {
	case "":
		ids, err := s.Engine.List(r.Context())
		if err != nil {
			s.engineError(w, "List", err)
			return
		}
		for _, id := range ids {
			cp, err := s.Engine.Inspect(r.Context(), id)
			if err != nil {
				s.logger.Warn("Skipping unreadable thread", "thread_id", id, "err", err)
				continue
			}
			checkpoints = append(checkpoints, cp)
		}
	case string(domain.StatusAwaitingApproval):
		pending, err := s.Engine.Pending(r.Context())
		if err != nil {
			s.engineError(w, "Pending", err)
			return
		}
		checkpoints = pending
	default:
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("Unsupported status filter %q", status), nil)
		return
	}

	out := make([]ThreadSummary, 0, len(checkpoints))
	for _, cp := range checkpoints {
		out = append(out, summarize(cp))
	}
	writeJSON(w, http.StatusOK, out, s.logger)
}

// SubscribeEvents handles GET /threads/{threadId}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	threadID := chi.URLParam(r, "threadId")
	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		watch = strings.Split(v, ",")
	}

	ch, cancel := s.Streams.Subscribe(threadID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE client subscribed", "thread_id", threadID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "thread_id", threadID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// engineError maps domain failures onto status codes.
func (s *Server) engineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCheckpointCorrupt):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAwaitingApproval), errors.Is(err, domain.ErrNotAwaitingApproval):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	s.fail(w, status, fmt.Sprintf("%s error: %v", op, err), err)
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "status", status, "err", err)
	} else {
		s.logger.Warn(msg, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
