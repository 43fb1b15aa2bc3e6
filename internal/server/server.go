// ABOUTME: HTTP transport for the bridge: unary tool calls plus session wiring.
// ABOUTME: Owns the router, bearer auth, and request/response envelope handling.

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/luminal-data/tablebridge/internal/dispatch"
	"github.com/luminal-data/tablebridge/internal/session"
	"github.com/luminal-data/tablebridge/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// messagesPath is the endpoint announced to streaming clients for
// posting invocations.
const messagesPath = "/mcp/messages"

// Config holds the server's collaborators.
type Config struct {
	Registry   *tools.Registry
	Dispatcher *dispatch.Dispatcher
	Sessions   *session.Manager
	Token      string // bearer token; empty disables auth
	Logger     *slog.Logger
}

// Server exposes the tool bridge over HTTP.
type Server struct {
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	token      string
	logger     *slog.Logger
}

// New creates a Server. The registry, dispatcher, and session manager
// are required.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	if cfg.Token == "" {
		logger.Warn("no auth token configured, endpoints are open")
	}

	return &Server{
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		sessions:   cfg.Sessions,
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/mcp", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleStatus)
		r.Get("/tools", s.handleTools)
		r.Post("/call", s.handleCall)
		r.Get("/sse", s.handleSSE)
		r.Post("/messages", s.handleMessage)
	})

	return r
}

// requireAuth enforces the configured bearer token. With no token
// configured the check is skipped.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		got := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || !strings.HasPrefix(header, "Bearer ") || got != s.token {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

// handleStatus describes the service and points streaming clients at
// the SSE endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":             "ok",
		"message":            "tablebridge is running",
		"streaming_endpoint": "/mcp/sse",
	})
}

// toolInfo is the wire descriptor for one registered tool.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	registered := s.registry.List()
	infos := make([]toolInfo, len(registered))
	for i, tool := range registered {
		infos[i] = toolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Schema.JSONSchema(),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

// handleCall is the unary adapter: one invocation per request, the
// result in the response body. Dispatch failures still return 200; only
// transport-level problems surface as HTTP errors.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	res := s.dispatcher.Dispatch(r.Context(), req)
	s.writeJSON(w, http.StatusOK, res)
}

// handleMessage accepts an invocation for a streaming session. The
// result arrives on the session's SSE stream, not in this response.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "missing session_id",
		})
		return
	}

	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Submit(sessionID, req); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			s.writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
		case errors.Is(err, session.ErrQueueFull):
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "session queue full",
			})
		default:
			s.logger.Error("failed to submit invocation",
				"session_id", sessionID,
				"error", err,
			)
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal error",
			})
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"requestId": req.RequestID,
	})
}

// decodeRequest parses an invocation envelope from the body, assigning a
// request id when the client omitted one. Writes the error response
// itself and returns ok=false on failure.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (dispatch.Request, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return dispatch.Request{}, false
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "request body too large",
		})
		return dispatch.Request{}, false
	}

	var req dispatch.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON",
		})
		return dispatch.Request{}, false
	}
	if req.Tool == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "toolName is required",
		})
		return dispatch.Request{}, false
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	return req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
