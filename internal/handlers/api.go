package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
)

// APIHandler serves the system endpoints
type APIHandler struct {
	config    *common.Config
	logger    arbor.ILogger
	startedAt time.Time
}

// NewAPIHandler creates the system endpoint handler
func NewAPIHandler(config *common.Config, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		config:    config,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// VersionHandler returns build information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// HealthHandler reports service liveness
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	mode := "local"
	if h.config.IsCloud() {
		mode = "cloud"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"mode":           mode,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// NotFoundHandler is the catch-all for unmatched API routes
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found")
}
