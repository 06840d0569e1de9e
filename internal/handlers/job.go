package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// JobHandler serves job inspection and deletion
type JobHandler struct {
	jobStore interfaces.JobStore
	logger   arbor.ILogger
}

// NewJobHandler creates the job management handler
func NewJobHandler(jobStore interfaces.JobStore, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStore: jobStore,
		logger:   logger,
	}
}

// ListJobsHandler handles GET /api/jobs with optional status and limit filters
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{}
	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = models.JobStatus(status)
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}

	jobs, err := h.jobStore.List(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(jobs),
		"jobs":    jobs,
	})
}

// JobRoutesHandler routes GET and DELETE /api/jobs/{id}
func (h *JobHandler) JobRoutesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getJob(w, r, jobID)
	case http.MethodDelete:
		h.deleteJob(w, r, jobID)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// getJob returns the job record itself; the status endpoint's shape is the
// job's wire form, not an envelope
func (h *JobHandler) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobStore.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// deleteJob marks the job deleted. Pending and processing jobs move straight
// to the terminal status; their in-flight tasks notice and stop.
func (h *JobHandler) deleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	status := models.JobStatusDeleted
	now := time.Now().UTC()
	err := h.jobStore.Update(r.Context(), jobID, &models.JobPatch{
		Status:    &status,
		DeletedAt: &now,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		WriteError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job_id":  jobID,
		"status":  status,
	})
}
