// Package server exposes the planner over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"smart-planner/internal/service"
)

// Deps are the services the API is built on.
type Deps struct {
	Tasks       *service.TaskService
	Categories  *service.CategoryService
	Schedule    *service.ScheduleService
	Breakdown   *service.BreakdownService
	Suggestions *service.SuggestionService
	Applier     *service.Applier
}

// Options configure the listener and apply pacing.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	SchedulePacing  service.Pacing
	BreakdownPacing service.Pacing
}

type Server struct {
	deps    Deps
	opts    Options
	origins map[string]struct{}
	server  *http.Server
}

func New(deps Deps, opts Options) *Server {
	s := &Server{
		deps:    deps,
		opts:    opts,
		origins: make(map[string]struct{}, len(opts.AllowedOrigins)),
	}
	for _, origin := range opts.AllowedOrigins {
		s.origins[origin] = struct{}{}
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", s.opts.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return ctx.Err()
	}
}
