package badger

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

func TestTaskQueueEnqueueDequeue(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, map[string]interface{}{"k": "v"}, "job-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].ID)
	assert.Equal(t, "job-1", tasks[0].JobID)
	assert.Equal(t, "v", tasks[0].Payload["k"])

	// Claimed tasks leave the ready index
	_, err = queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 10)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestTaskQueueEmptyReturnsErrNoTask(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())

	_, err := queue.DequeueReady(context.Background(), models.TaskTypeCleanup, 5)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestTaskQueueDelayedTaskNotReady(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, "job-1", 3600)
	require.NoError(t, err)

	_, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 10)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestTaskQueueOrderedBySchedule(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Enqueue out of schedule order; dequeue must come back oldest first
	late, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-late", 0)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	later, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-later", 0)
	require.NoError(t, err)

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, late, tasks[0].ID)
	assert.Equal(t, later, tasks[1].ID)
}

func TestTaskQueueTypeIsolation(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	_, err = queue.DequeueReady(ctx, models.TaskTypeProcessImage, 10)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestTaskQueueMaxLimit(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
		require.NoError(t, err)
	}

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 3)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	tasks, err = queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 3)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestTaskQueueReschedule(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 1)
	require.NoError(t, err)
	task := tasks[0]

	// Simulate a failed attempt rescheduled for immediate retry
	task.RetryCount++
	task.ExecuteAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, queue.Reschedule(ctx, task))

	tasks, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Equal(t, 1, tasks[0].RetryCount)
}

func TestTaskQueueRemove(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	require.NoError(t, queue.Remove(ctx, models.TaskTypeBatchCrawl, taskID))

	_, err = queue.DequeueReady(ctx, models.TaskTypeBatchCrawl, 10)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)

	// Removing again is a no-op
	require.NoError(t, queue.Remove(ctx, models.TaskTypeBatchCrawl, taskID))
}

func TestTaskQueueMarkFailed(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, models.TaskTypeSingleCrawl, nil, "job-1", 0)
	require.NoError(t, err)

	tasks, err := queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 1)
	require.NoError(t, err)

	require.NoError(t, queue.MarkFailed(ctx, tasks[0], "exhausted retries"))

	// A failed task never becomes ready again
	_, err = queue.DequeueReady(ctx, models.TaskTypeSingleCrawl, 10)
	assert.ErrorIs(t, err, interfaces.ErrNoTask)
}

func TestTaskQueueTaskTypes(t *testing.T) {
	queue := NewTaskQueue(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	types, err := queue.TaskTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	_, err = queue.Enqueue(ctx, models.TaskTypeBatchCrawl, nil, "job-1", 0)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.TaskTypeCleanup, nil, "job-2", 0)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.TaskTypeCleanup, nil, "job-3", 0)
	require.NoError(t, err)

	types, err = queue.TaskTypes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.TaskTypeBatchCrawl, models.TaskTypeCleanup}, types)
}
