package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/video-summarizer/internal/config"
	"github.com/MimeLyc/video-summarizer/internal/service"
	"github.com/MimeLyc/video-summarizer/internal/summary"
	"github.com/MimeLyc/video-summarizer/internal/tasks"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	svc         *service.Service
	coordinator *tasks.Coordinator
	cache       summary.Cache
	settings    runtimeSettingsStore
	apply       runtimeSettingsApplier

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(svc *service.Service, coordinator *tasks.Coordinator, cache summary.Cache, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		coordinator: coordinator,
		cache:       cache,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/summaries", s.handleSummaries)
	s.mux.HandleFunc("/api/tasks", s.handleListTasks)
	s.mux.HandleFunc("/api/tasks/stream", s.handleTaskStream)
	s.mux.HandleFunc("/api/tasks/", s.handleTaskByID)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
}
