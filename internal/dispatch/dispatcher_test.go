package dispatch

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
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

// testDispatcher wires a dispatcher against an httptest endpoint standing in
// for the server's own task route
func testDispatcher(t *testing.T, endpoint http.HandlerFunc) (*Dispatcher, interfaces.TaskQueue, interfaces.JobStore) {
	t.Helper()

	srv := httptest.NewServer(endpoint)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	logger := arbor.NewLogger()
	config := common.NewDefaultConfig()
	config.Server.Host = host
	config.Server.Port = port
	config.Queue.MaxRetries = models.DefaultMaxRetries

	queue := memory.NewTaskQueue(logger)
	jobStore := memory.NewJobStore(logger)
	emitter := webhook.NewEmitter(&common.WebhookConfig{Timeout: time.Second}, logger)
	runtime := tasks.NewRuntime(tasks.NewRegistry(), jobStore, emitter, logger)

	d := NewDispatcher(queue, runtime, config, logger)
	t.Cleanup(d.Stop)
	return d, queue, jobStore
}

func claimTask(t *testing.T, queue interfaces.TaskQueue, taskType string) *models.Task {
	t.Helper()

	ready, err := queue.DequeueReady(context.Background(), taskType, 1)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	return ready[0]
}

func TestDeliverSuccessRemovesTask(t *testing.T) {
	var gotPath string
	d, queue, _ := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeBatchCrawl)
	d.deliver(task)

	assert.Equal(t, "/tasks/batch-crawl/job-1", gotPath)

	// Removed for good; rescheduling never brings it back
	require.NoError(t, queue.Remove(ctx, models.TaskTypeBatchCrawl, taskID))
	_, err = queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestDeliverFailureReschedulesWithBackoff(t *testing.T) {
	d, queue, _ := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeSingleCrawl)
	d.deliver(task)

	assert.Equal(t, 1, task.RetryCount)
	// First retry lands one backoff unit out
	assert.WithinDuration(t, time.Now().UTC().Add(models.RetryBackoff), task.ExecuteAt, time.Second)

	// Not ready yet
	_, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestDeliverExhaustedRetriesFailsJob(t *testing.T) {
	d, queue, jobStore := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)

	_, err = queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, jobID, 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeSingleCrawl)
	task.RetryCount = task.MaxRetries

	d.deliver(task)

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "task failed after")

	// The failed task stays out of the ready index
	_, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestDeliverHonorsConfiguredMaxRetries(t *testing.T) {
	d, queue, jobStore := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	// As MAX_RETRIES=1 would configure it
	d.maxRetries = 1
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)

	_, err = queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, jobID, 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeSingleCrawl)

	// First failure consumes the single allowed retry
	d.deliver(task)
	assert.Equal(t, 1, task.RetryCount)

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	// Second failure exhausts the configured budget even though the task
	// record still carries the stamped default of 3
	d.deliver(task)
	assert.Equal(t, 1, task.RetryCount)

	job, err = jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "task failed after 2 attempts")
}

func TestPollScansQueuedTaskTypes(t *testing.T) {
	var gotPaths []string
	d, queue, _ := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.TaskTypeCleanup, nil, "job-2", 0)
	require.NoError(t, err)

	// One poll discovers both types from the queue and delivers each task
	assert.False(t, d.poll())
	assert.ElementsMatch(t, []string{"/tasks/batch-crawl/job-1", "/tasks/cleanup/job-2"}, gotPaths)

	types, err := queue.TaskTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestDeliverPermanentFailureResponseIsSettled(t *testing.T) {
	// 200 with success=false means the handler already failed the job;
	// the dispatcher treats it as delivered and removes the task
	d, queue, _ := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":false,"error":"invalid payload"}`))
	})
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeBatchCrawl)
	d.deliver(task)

	assert.Equal(t, 0, task.RetryCount)
	_, err = queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestDeliverUnreachableEndpointReschedules(t *testing.T) {
	d, queue, _ := testDispatcher(t, func(w http.ResponseWriter, r *http.Request) {})
	// Point at a port nothing listens on
	d.baseURL = "http://127.0.0.1:1"
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	task := claimTask(t, queue, models.TaskTypeBatchCrawl)
	d.deliver(task)

	assert.Equal(t, 1, task.RetryCount)
}
