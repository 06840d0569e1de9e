package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// TaskQueue is the in-memory fallback delay queue. Ready ordering and claim
// semantics match the badger queue; durability does not.
type TaskQueue struct {
	mu     sync.Mutex
	ready  map[string][]*models.Task // task type -> schedule-ordered pending tasks
	tasks  map[string]*models.Task   // claimed and failed records by ID
	logger arbor.ILogger
}

// NewTaskQueue creates an in-memory task queue
func NewTaskQueue(logger arbor.ILogger) interfaces.TaskQueue {
	return &TaskQueue{
		ready:  make(map[string][]*models.Task),
		tasks:  make(map[string]*models.Task),
		logger: logger,
	}
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delaySeconds int) (string, error) {
	task := models.NewTask(taskType, payload, jobID, delaySeconds)

	q.mu.Lock()
	q.tasks[task.ID] = task
	q.push(task)
	q.mu.Unlock()

	return task.ID, nil
}

func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	if max <= 0 {
		max = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.ready[taskType]
	now := time.Now().UTC()

	var claimed []*models.Task
	for len(pending) > 0 && len(claimed) < max {
		head := pending[0]
		if head.ExecuteAt.After(now) {
			break
		}
		claimed = append(claimed, head)
		pending = pending[1:]
	}
	q.ready[taskType] = pending

	if len(claimed) == 0 {
		return nil, interfaces.ErrNoTask
	}
	return claimed, nil
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.tasks, taskID)

	pending := q.ready[taskType]
	for i, t := range pending {
		if t.ID == taskID {
			q.ready[taskType] = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	return nil
}

func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task) error {
	q.mu.Lock()
	q.tasks[task.ID] = task
	q.push(task)
	q.mu.Unlock()
	return nil
}

func (q *TaskQueue) MarkFailed(ctx context.Context, task *models.Task, errMsg string) error {
	q.mu.Lock()
	task.Error = errMsg
	q.tasks[task.ID] = task
	q.mu.Unlock()
	return nil
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	types := make([]string, 0, len(q.ready))
	for t, pending := range q.ready {
		if len(pending) > 0 {
			types = append(types, t)
		}
	}
	return types, nil
}

func (q *TaskQueue) Close() error {
	return nil
}

// push inserts the task into its type's pending slice, keeping schedule order
func (q *TaskQueue) push(task *models.Task) {
	pending := append(q.ready[task.Type], task)
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ExecuteAt.Equal(pending[j].ExecuteAt) {
			return pending[i].ExecuteAt.Before(pending[j].ExecuteAt)
		}
		return pending[i].ID < pending[j].ID
	})
	q.ready[task.Type] = pending
}
