// Package web serves the HTTP control API for scans and plugins.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/buemura/reconcraft/internal/metrics"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/internal/web/scans"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

// Deps are the collaborators a Server needs.
type Deps struct {
	Registry *plugin.Registry
	Runner   scans.Runner
	Checker  *toolcheck.Checker
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	// Defaults fills scan request fields a client leaves unset.
	Defaults scan.Request
	// Refresh reloads the plugin registry; nil disables the endpoint.
	Refresh func() []plugin.Rejected
	// AllowCustomArgs accepts per-request custom_args.
	AllowCustomArgs bool
}

// Server is the HTTP server for the reconcraft control API.
type Server struct {
	router  chi.Router
	addr    string
	deps    Deps
	manager *scans.Manager
	logger  zerolog.Logger
}

// NewServer builds a new Server with middleware and routes configured.
func NewServer(addr string, deps Deps) *Server {
	if deps.Checker == nil {
		deps.Checker = toolcheck.New()
	}
	s := &Server{
		router:  chi.NewRouter(),
		addr:    addr,
		deps:    deps,
		manager: scans.NewManager(deps.Runner, deps.Logger),
		logger:  deps.Logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.registerRoutes()

	return s
}

// Run listens on the configured address until ctx is cancelled, then
// aborts running scans and drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("shutting down gracefully")
		err := srv.Shutdown(shutdownCtx)
		if merr := s.manager.Shutdown(shutdownCtx); err == nil {
			err = merr
		}
		done <- err
	}()

	s.logger.Info().Str("addr", s.addr).Msg("control API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

// Router exposes the chi.Router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Manager exposes the scan session manager.
func (s *Server) Manager() *scans.Manager {
	return s.manager
}

// requestLogger logs one line per request with zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
