package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// maxUploadBytes bounds an uploaded image (10 MB)
const maxUploadBytes = 10 << 20

// UploadHandler accepts image uploads and starts image-processing jobs
type UploadHandler struct {
	jobStore interfaces.JobStore
	queue    interfaces.TaskQueue
	store    interfaces.ArtifactStore
	logger   arbor.ILogger
}

// NewUploadHandler creates the image upload handler
func NewUploadHandler(jobStore interfaces.JobStore, queue interfaces.TaskQueue, store interfaces.ArtifactStore, logger arbor.ILogger) *UploadHandler {
	return &UploadHandler{
		jobStore: jobStore,
		queue:    queue,
		store:    store,
		logger:   logger,
	}
}

// UploadImageHandler handles POST /api/upload-async (multipart form, field
// "image", optional "title"). The image lands in the artifact store, then a
// job and task are created to extract its text asynchronously.
func (h *UploadHandler) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "uploaded image is empty")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported content type: %s", mimeType))
		return
	}

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		filename = "upload.png"
	}

	metadata := map[string]interface{}{
		"filename":  filename,
		"mime_type": mimeType,
		"size":      len(data),
	}
	if title := r.FormValue("title"); title != "" {
		metadata["title"] = title
	}

	jobID, err := h.jobStore.Create(r.Context(), models.JobTypeImageProcessing, metadata)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create image job")
		WriteError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	filePath, err := h.store.Save(r.Context(), data, "uploads/"+jobID, filename)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to save upload")
		h.jobStore.Update(r.Context(), jobID, models.FailedPatch("failed to save upload"))
		WriteError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	if err := h.jobStore.Update(r.Context(), jobID, &models.JobPatch{
		Metadata: map[string]interface{}{"file_path": filePath},
	}); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to record file path")
		WriteError(w, http.StatusInternalServerError, "failed to update job")
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), models.TaskTypeProcessImage, nil, jobID, 0); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue image task")
		h.jobStore.Update(r.Context(), jobID, models.FailedPatch("failed to enqueue task"))
		WriteError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("Image upload accepted")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job_id":  jobID,
		"status":  models.JobStatusPending,
	})
}
