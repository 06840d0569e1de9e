package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
)

// ArtifactHandler serves stored artifacts back to clients
type ArtifactHandler struct {
	store  interfaces.ArtifactStore
	logger arbor.ILogger
}

// NewArtifactHandler creates the artifact retrieval handler
func NewArtifactHandler(store interfaces.ArtifactStore, logger arbor.ILogger) *ArtifactHandler {
	return &ArtifactHandler{
		store:  store,
		logger: logger,
	}
}

// GetArtifactHandler handles GET /api/artifacts/{path...}. The path after
// the prefix is the logical artifact path, e.g. batch/{job_id}/report_0.md.
func (h *ArtifactHandler) GetArtifactHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	logicalPath := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	if logicalPath == "" {
		WriteError(w, http.StatusBadRequest, "missing artifact path")
		return
	}

	data, err := h.store.Get(r.Context(), logicalPath)
	if err != nil {
		if errors.Is(err, interfaces.ErrArtifactNotFound) {
			WriteError(w, http.StatusNotFound, "artifact not found")
			return
		}
		h.logger.Error().Err(err).Str("path", logicalPath).Msg("Failed to read artifact")
		WriteError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(logicalPath))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".md"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
