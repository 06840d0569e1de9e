package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/storage/memory"
	"github.com/ternarybob/wraith/internal/tasks"
	"github.com/ternarybob/wraith/internal/webhook"
)

type scriptedHandler struct {
	taskType string
	err      error
}

func (h *scriptedHandler) Type() string { return h.taskType }

func (h *scriptedHandler) Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error) {
	if h.err != nil {
		return nil, h.err
	}
	return map[string]interface{}{"done": true}, nil
}

func testTaskHandler(t *testing.T, handlers ...tasks.Handler) (*TaskHandler, interfaces.JobStore) {
	t.Helper()

	logger := arbor.NewLogger()
	registry := tasks.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, registry.Register(h))
	}
	jobStore := memory.NewJobStore(logger)
	emitter := webhook.NewEmitter(&common.WebhookConfig{Timeout: time.Second}, logger)
	runtime := tasks.NewRuntime(registry, jobStore, emitter, logger)
	return NewTaskHandler(runtime, logger), jobStore
}

func TestExecuteHandlerSuccess(t *testing.T) {
	handler, jobStore := testTaskHandler(t, &scriptedHandler{taskType: "test-task"})

	jobID, err := jobStore.Create(context.Background(), models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)

	rec := postJSON(t, handler.ExecuteHandler, "/tasks/test-task/"+jobID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	job, err := jobStore.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestExecuteHandlerPermanentFailureReturns200(t *testing.T) {
	handler, jobStore := testTaskHandler(t, &scriptedHandler{
		taskType: "test-task",
		err:      tasks.Permanent(fmt.Errorf("bad request payload")),
	})

	jobID, err := jobStore.Create(context.Background(), models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)

	rec := postJSON(t, handler.ExecuteHandler, "/tasks/test-task/"+jobID, "")

	// 200 with success=false: the job is failed, stop redelivery
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "bad request payload")

	job, err := jobStore.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestExecuteHandlerTransientFailureReturns500(t *testing.T) {
	handler, jobStore := testTaskHandler(t, &scriptedHandler{
		taskType: "test-task",
		err:      fmt.Errorf("upstream timeout"),
	})

	jobID, err := jobStore.Create(context.Background(), models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)

	rec := postJSON(t, handler.ExecuteHandler, "/tasks/test-task/"+jobID, "")

	// 5xx asks the queue to redeliver
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	job, err := jobStore.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
}

func TestExecuteHandlerSettledJobIsNoop(t *testing.T) {
	handler, jobStore := testTaskHandler(t, &scriptedHandler{taskType: "test-task"})
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, jobID, models.CompletedPatch(nil)))

	rec := postJSON(t, handler.ExecuteHandler, "/tasks/test-task/"+jobID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestExecuteHandlerBadPath(t *testing.T) {
	handler, _ := testTaskHandler(t)

	rec := postJSON(t, handler.ExecuteHandler, "/tasks/only-type", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, handler.ExecuteHandler, "/tasks//job-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteHandlerMethodNotAllowed(t *testing.T) {
	handler, _ := testTaskHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/tasks/test-task/job-1", nil)
	rec := httptest.NewRecorder()
	handler.ExecuteHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
