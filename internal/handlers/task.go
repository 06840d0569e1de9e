package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/tasks"
)

// TaskHandler serves POST /tasks/{type}/{job_id}, the task delivery
// endpoint. The local dispatcher and Cloud Tasks both push here.
//
// Response contract: transient failures return 5xx so the queue redelivers;
// permanent failures return 200 with success=false after the job has been
// failed, which stops redelivery on both paths.
type TaskHandler struct {
	runtime *tasks.Runtime
	logger  arbor.ILogger
}

// NewTaskHandler creates the task delivery handler
func NewTaskHandler(runtime *tasks.Runtime, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		runtime: runtime,
		logger:  logger,
	}
}

// ExecuteHandler runs one task delivery
func (h *TaskHandler) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		WriteError(w, http.StatusNotFound, "expected /tasks/{type}/{job_id}")
		return
	}
	taskType, jobID := parts[0], parts[1]

	var payload map[string]interface{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := DecodeJSON(r, &payload); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid task payload")
			return
		}
	}

	err := h.runtime.Execute(r.Context(), taskType, jobID, payload)
	if err == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"job_id":  jobID,
		})
		return
	}

	if tasks.IsPermanent(err) {
		// Job already failed; 2xx stops the queue from redelivering
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"job_id":  jobID,
			"error":   err.Error(),
		})
		return
	}

	WriteError(w, http.StatusInternalServerError, err.Error())
}
