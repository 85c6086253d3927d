package web

import (
	"encoding/json"
	"net/http"

	"github.com/buemura/reconcraft/internal/web/api"
	"github.com/go-chi/chi/v5"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	apiHandlers := api.NewHandlers(s.manager, s.deps.Registry, s.deps.Checker)
	apiHandlers.Defaults = s.deps.Defaults
	apiHandlers.Refresh = s.deps.Refresh
	apiHandlers.AllowCustomArgs = s.deps.AllowCustomArgs

	// Health check
	s.router.Get("/health", s.handleHealth)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	// REST API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", apiHandlers.CreateScan)
		r.Get("/scans", apiHandlers.ListScans)
		r.Get("/scans/{id}", apiHandlers.GetScan)
		r.Post("/scans/{id}/abort", apiHandlers.AbortScan)
		r.Delete("/scans/{id}", apiHandlers.DeleteScan)
		r.Get("/plugins", apiHandlers.ListPlugins)
		r.Post("/plugins/refresh", apiHandlers.RefreshPlugins)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"plugins": s.deps.Registry.Len(),
	})
}
