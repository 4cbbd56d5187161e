// Package api exposes the translation service over HTTP: job
// submission, status polling, cancellation and the progress event
// stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dvelkov/subtrans/internal/config"
	"github.com/dvelkov/subtrans/internal/job"
	"github.com/dvelkov/subtrans/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	ctrl   *pipeline.Controller
	store  *job.Store
	log    *slog.Logger
	cfg    config.Config

	// slots bounds the number of jobs running at once.
	slots chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates and configures the HTTP server.
func NewServer(ctrl *pipeline.Controller, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		ctrl:  ctrl,
		store: job.NewStore(cfg.JobTTL),
		log:   log,
		cfg:   cfg,
		slots: make(chan struct{}, cfg.MaxQueueSize),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start launches the background job context and registry cleanup.
func (s *Server) Start(ctx context.Context) {
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.baseCtx.Done():
				return
			case <-ticker.C:
				s.store.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs and waits for background work to drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.AuthToken != "" {
			r.Use(AuthMiddleware(s.cfg.AuthToken))
		}

		r.Post("/api/jobs", s.handleSubmit)
		r.Get("/api/jobs/{jobID}", s.handleStatus)
		r.Post("/api/jobs/{jobID}/cancel", s.handleCancel)
		r.Get("/api/jobs/{jobID}/events", s.handleEvents)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
