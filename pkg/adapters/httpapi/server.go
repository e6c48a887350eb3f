// Package httpapi exposes sessions over HTTP for dashboards and scripts:
// inspect the workflow, list sessions, resume or cancel them. The engine
// stays the single writer; this surface never executes steps on its own.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/pkg/domain"
)

// Engine is the orchestrator surface the HTTP API drives.
type Engine interface {
	Resume(ctx context.Context, id string, input any) (*domain.SessionState, error)
	Status(ctx context.Context, id string) (*domain.SessionState, error)
	Cancel(ctx context.Context, id string) (*domain.SessionState, error)
	Sessions(ctx context.Context) ([]string, error)
	Workflow() *domain.Workflow
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics mounts GET /metrics serving the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics = g }
}

// Server holds the handler dependencies.
type Server struct {
	engine  Engine
	logger  *slog.Logger
	metrics prometheus.Gatherer
}

// NewHandler builds the chi router for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Get("/workflow", s.workflow)
	r.Get("/sessions", s.listSessions)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Post("/resume", s.resume)
		r.Post("/cancel", s.cancel)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stepView is the wire shape of one step in the workflow summary.
type stepView struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Prompt string `json:"prompt,omitempty"`
}

type workflowView struct {
	Name    string     `json:"name"`
	Version string     `json:"version,omitempty"`
	Start   string     `json:"start"`
	Steps   []stepView `json:"steps"`
}

func (s *Server) workflow(w http.ResponseWriter, r *http.Request) {
	wf := s.engine.Workflow()
	view := workflowView{
		Name:    wf.Name,
		Version: wf.Version,
		Start:   wf.Start,
		Steps:   make([]stepView, 0, len(wf.Steps)),
	}
	for _, step := range wf.Steps {
		view.Steps = append(view.Steps, stepView{
			ID:     step.ID,
			Kind:   string(step.Kind),
			Prompt: step.Prompt,
		})
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Sessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// resumeRequest carries the input handed to a suspended session. An empty
// body resumes without input, which re-executes a crashed step.
type resumeRequest struct {
	Input any `json:"input"`
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	var body resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if text, ok := body.Input.(string); ok {
		clean, err := guide.SanitizeInput(text)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		body.Input = clean
	}

	state, err := s.engine.Resume(r.Context(), chi.URLParam(r, "id"), body.Input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionTerminal),
		errors.Is(err, domain.ErrSessionBusy),
		errors.Is(err, domain.ErrSessionExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
