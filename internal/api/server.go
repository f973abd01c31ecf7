// Package api exposes the HTTP surface of the service.
//
// Routes are registered on a standard [http.ServeMux] using method-qualified
// patterns. Handlers speak JSON; uploads (audio recordings, reference
// documents) use multipart form encoding. Analysis runs asynchronously:
// uploading a recording returns 202 with the pending recording, and clients
// either poll its status or subscribe to the per-recording websocket event
// stream served by [Hub].
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/podiumlabs/podium/internal/gamify"
	"github.com/podiumlabs/podium/internal/observe"
	"github.com/podiumlabs/podium/internal/qa"
	"github.com/podiumlabs/podium/internal/store"
	"github.com/podiumlabs/podium/pkg/provider/extract"
)

// Enqueuer schedules an asynchronous analysis run for a recording.
// *pipeline.Runner satisfies it.
type Enqueuer interface {
	Enqueue(recordingID string)
}

// Server holds the collaborators behind the HTTP handlers.
type Server struct {
	store     store.Store
	runner    Enqueuer
	extractor extract.Provider
	questions *qa.Generator
	engine    *gamify.Engine
	hub       *Hub
	metrics   *observe.Metrics
	log       *slog.Logger

	// audioDir is where uploaded recordings are written before analysis.
	audioDir string
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAudioDir sets the directory uploaded audio is stored in.
// Defaults to the OS temp directory.
func WithAudioDir(dir string) Option {
	return func(s *Server) { s.audioDir = dir }
}

// New creates a [Server]. extractor and questions may rely on nil inner
// providers; their packages degrade to deterministic fallbacks.
func New(st store.Store, runner Enqueuer, extractor extract.Provider, questions *qa.Generator, engine *gamify.Engine, hub *Hub, opts ...Option) *Server {
	s := &Server{
		store:     st,
		runner:    runner,
		extractor: extractor,
		questions: questions,
		engine:    engine,
		hub:       hub,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/presentations", s.handleCreatePresentation)
	mux.HandleFunc("GET /api/v1/presentations", s.handleListPresentations)
	mux.HandleFunc("GET /api/v1/presentations/{id}", s.handleGetPresentation)
	mux.HandleFunc("POST /api/v1/presentations/{id}/recordings", s.handleUploadRecording)
	mux.HandleFunc("GET /api/v1/presentations/{id}/recordings", s.handleListRecordings)
	mux.HandleFunc("POST /api/v1/presentations/{id}/document", s.handleUploadDocument)
	mux.HandleFunc("GET /api/v1/presentations/{id}/questions", s.handleListQuestions)
	mux.HandleFunc("GET /api/v1/presentations/{id}/badges", s.handleListBadges)
	mux.HandleFunc("GET /api/v1/recordings/{id}", s.handleGetRecording)
	mux.HandleFunc("POST /api/v1/recordings/{id}/reanalyze", s.handleReanalyze)
	mux.HandleFunc("GET /api/v1/recordings/{id}/events", s.handleRecordingEvents)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// storeError maps store errors to responses: ErrNotFound becomes 404,
// anything else a logged 500.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error("store operation failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
