// Package api serves live run status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aristath/datagen/internal/orchestrator"
)

// StatusSource provides the live run counters. *orchestrator.Runner implements it.
type StatusSource interface {
	Snapshot() orchestrator.Snapshot
}

type Server struct {
	router *chi.Mux
	addr   string
	source StatusSource
	logger *slog.Logger
}

func NewServer(addr string, source StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		addr:   addr,
		source: source,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/progress", s.progress)
	router.Get("/api/v1/backends", s.backends)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status API listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type progressResponse struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Done      int            `json:"done"`
	Running   int            `json:"running"`
	Written   int            `json:"written"`
	Abandoned int            `json:"abandoned"`
	Percent   float64        `json:"percent"`
	Outcomes  map[string]int `json:"outcomes"`
	Elapsed   string         `json:"elapsed"`
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()

	pct := 0.0
	if snap.Total > 0 {
		pct = float64(snap.Done) * 100 / float64(snap.Total)
	}
	writeJSON(w, http.StatusOK, progressResponse{
		RunID:     snap.RunID,
		Total:     snap.Total,
		Done:      snap.Done,
		Running:   snap.Running,
		Written:   snap.Written,
		Abandoned: snap.Abandoned,
		Percent:   pct,
		Outcomes:  snap.Outcomes,
		Elapsed:   snap.Elapsed.Round(time.Second).String(),
	})
}

func (s *Server) backends(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"backends": snap.Backends})
}
