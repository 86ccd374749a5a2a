// Package server exposes the planning engine over HTTP: dialogue,
// execution, the two review checkpoints, and review preferences.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"plannerd/internal/config"
	"plannerd/internal/logging"
	"plannerd/internal/orchestrator"
	"plannerd/internal/store"
)

// Server is the HTTP boundary around the orchestrator.
type Server struct {
	orch  *orchestrator.Orchestrator
	store *store.Store
	log   *zap.Logger

	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New wires the routes and returns a server ready to start.
func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, st *store.Store, log *zap.Logger) *Server {
	s := &Server{
		orch:            orch,
		store:           st,
		log:             log,
		shutdownTimeout: time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 10 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/planning/dialogue", s.handleDialogue)
	mux.HandleFunc("POST /api/planning/execute", s.handleExecute)
	mux.HandleFunc("POST /api/planning/review/selection", s.handleSelectionReview)
	mux.HandleFunc("POST /api/planning/review/assignment", s.handleAssignmentReview)
	mux.HandleFunc("GET /api/planning/plan", s.handleGetPlan)
	mux.HandleFunc("GET /api/planning/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/planning/preferences", s.handlePutPreferences)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.logRequests(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // plan generation can be slow
	}
	return s
}

// Start serves until the context is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		logging.Server("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
