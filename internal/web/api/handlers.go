package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/internal/web/scans"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/go-chi/chi/v5"
)

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Manager  *scans.Manager
	Registry *plugin.Registry
	Checker  *toolcheck.Checker
	// Defaults fills the request fields a client leaves unset.
	Defaults scan.Request
	// Refresh reloads the plugin registry. Nil disables POST /plugins/refresh.
	Refresh func() []plugin.Rejected
	// AllowCustomArgs lets a request override Defaults.CustomArgs.
	AllowCustomArgs bool
}

// NewHandlers creates API handlers with the given dependencies.
func NewHandlers(manager *scans.Manager, registry *plugin.Registry, checker *toolcheck.Checker) *Handlers {
	return &Handlers{Manager: manager, Registry: registry, Checker: checker}
}

// CreateScan handles POST /api/v1/scans.
func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateScanRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	targets, err := types.ParseTargets(req.Targets)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target: "+err.Error())
		return
	}
	if len(targets) == 0 {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	tools := req.Tools
	if req.allTools() {
		tools = h.Registry.Names()
	}
	if len(tools) == 0 {
		writeError(w, http.StatusUnprocessableEntity, scan.ErrNoPlugins.Error())
		return
	}

	sr := h.Defaults
	sr.Targets = req.Targets
	sr.Tools = tools
	if req.Profile != "" {
		sr.Profile = req.Profile
	}
	if req.CustomArgs != nil && h.AllowCustomArgs {
		sr.CustomArgs = req.CustomArgs
	}
	if req.Concurrency > 0 {
		sr.Concurrency = req.Concurrency
	}
	if req.Timeout != "" {
		d, _ := time.ParseDuration(req.Timeout) // already validated
		sr.Timeout = d
	}

	session := h.Manager.Create(sr)
	if err := h.Manager.Start(session.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start scan: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     session.ID,
		"status": scans.StatusRunning,
	})
}

// ListScans handles GET /api/v1/scans.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	list := h.Manager.List()

	type scanSummary struct {
		ID         string              `json:"id"`
		Targets    []string            `json:"targets"`
		Tools      []string            `json:"tools"`
		Profile    string              `json:"profile"`
		Status     scans.SessionStatus `json:"status"`
		ScanStatus types.Status        `json:"scan_status,omitempty"`
		Progress   int                 `json:"progress"`
		CreatedAt  time.Time           `json:"created_at"`
	}

	summaries := make([]scanSummary, len(list))
	for i, s := range list {
		summaries[i] = scanSummary{
			ID:         s.ID,
			Targets:    s.Targets,
			Tools:      s.Tools,
			Profile:    s.Profile,
			Status:     s.Status,
			ScanStatus: s.ScanStatus,
			Progress:   s.Progress,
			CreatedAt:  s.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// GetScan handles GET /api/v1/scans/{id}.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.Manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// AbortScan handles POST /api/v1/scans/{id}/abort. The abort is
// asynchronous: clients poll GET /scans/{id} for the final outcome.
func (h *Handlers) AbortScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Manager.Abort(id)
	switch {
	case errors.Is(err, scans.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, scans.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "aborting": true})
}

// DeleteScan handles DELETE /api/v1/scans/{id}.
func (h *Handlers) DeleteScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manager.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPlugins handles GET /api/v1/plugins. Availability is re-probed on
// every call.
func (h *Handlers) ListPlugins(w http.ResponseWriter, r *http.Request) {
	h.Checker.Reset()
	writeJSON(w, http.StatusOK, h.Registry.Statuses(h.Checker))
}

// RefreshPlugins handles POST /api/v1/plugins/refresh.
func (h *Handlers) RefreshPlugins(w http.ResponseWriter, r *http.Request) {
	if h.Refresh == nil {
		writeError(w, http.StatusNotImplemented, "plugin refresh is not configured")
		return
	}

	rejected := h.Refresh()
	if rejected == nil {
		rejected = []plugin.Rejected{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plugins":  h.Registry.Len(),
		"rejected": rejected,
	})
}
