package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	store := NewJobStore(arbor.NewLogger())
	ctx := context.Background()

	jobID, err := store.Create(ctx, models.JobTypeImageProcessing, map[string]interface{}{"image_path": "uploads/x"})
	require.NoError(t, err)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	require.NoError(t, store.Update(ctx, jobID, models.ProcessingPatch()))
	require.NoError(t, store.Update(ctx, jobID, models.FailedPatch("ocr unavailable")))

	job, err = store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "ocr unavailable", job.Error)

	// Terminal latch
	require.NoError(t, store.Update(ctx, jobID, models.CompletedPatch(nil)))
	job, err = store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestMemoryJobStoreGetReturnsCopy(t *testing.T) {
	store := NewJobStore(arbor.NewLogger())
	ctx := context.Background()

	jobID, err := store.Create(ctx, models.JobTypeBatchCrawl, map[string]interface{}{"a": 1})
	require.NoError(t, err)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	job.Metadata["a"] = 2

	again, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Metadata["a"])
}

func TestMemoryJobStoreNotFound(t *testing.T) {
	store := NewJobStore(arbor.NewLogger())

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)

	err = store.Update(context.Background(), "missing", models.ProcessingPatch())
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)
}

func TestMemoryJobStoreList(t *testing.T) {
	store := NewJobStore(arbor.NewLogger())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.Create(ctx, models.JobTypeBatchCrawl, nil)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, store.Update(ctx, ids[1], models.CompletedPatch(nil)))

	jobs, err := store.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)

	completed, err := store.List(ctx, &interfaces.JobListOptions{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, ids[1], completed[0].ID)
}

func TestMemoryTaskQueueClaimAndRetry(t *testing.T) {
	queue := NewTaskQueue(arbor.NewLogger())
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 5)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].ID)

	// Claimed, not ready again until rescheduled
	_, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)

	task := tasks[0]
	task.RetryCount++
	task.ExecuteAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, queue.Reschedule(ctx, task))

	tasks, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 5)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].RetryCount)
}

func TestMemoryTaskQueueDelay(t *testing.T) {
	queue := NewTaskQueue(arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeCleanup, nil, "job-1", 600)
	require.NoError(t, err)

	_, err = queue.DequeueReady(ctx, models.TaskTypeCleanup, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestMemoryTaskQueueTaskTypes(t *testing.T) {
	queue := NewTaskQueue(arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.TaskTypeProcessImage, nil, "job-2", 30)
	require.NoError(t, err)

	types, err := queue.TaskTypes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.TaskTypeBatchCrawl, models.TaskTypeProcessImage}, types)
}
