package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// TaskQueue implements a persistent delay queue on raw badger keys.
//
// Task records live at task:{id}. A ready index at
// task_queue:{type}:{executeAt}:{id} orders tasks by schedule; the timestamp
// is zero-padded to 20 digits so lexicographic key order matches numeric
// order and a prefix scan can stop at the first future entry.
type TaskQueue struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskQueue creates a new badger-backed task queue
func NewTaskQueue(db *BadgerDB, logger arbor.ILogger) interfaces.TaskQueue {
	return &TaskQueue{
		db:     db,
		logger: logger,
	}
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delaySeconds int) (string, error) {
	task := models.NewTask(taskType, payload, jobID, delaySeconds)

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(taskKey(task.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(task.Type, task.ExecuteAt, task.ID), []byte{})
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug().
		Str("task_id", task.ID).
		Str("task_type", taskType).
		Str("job_id", jobID).
		Int("delay_seconds", delaySeconds).
		Msg("Task enqueued")

	return task.ID, nil
}

// DequeueReady claims up to max ready tasks of the given type. Claimed tasks
// leave the ready index inside the same transaction, so concurrent pollers
// never receive the same task; the record stays until Remove or Reschedule.
func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	if max <= 0 {
		max = 1
	}

	var tasks []*models.Task

	err := q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("task_queue:%s:", taskType))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now().UTC()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(tasks) < max; it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := parseIndexKey(taskType, key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by timestamp; nothing later is ready either
				break
			}

			item, err := txn.Get(taskKey(id))
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var task models.Task
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &task)
			}); err != nil {
				return err
			}

			if err := txn.Delete(key); err != nil {
				return err
			}
			tasks = append(tasks, &task)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil, interfaces.ErrNoTask
	}
	return tasks, nil
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	return q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		key := taskKey(taskID)
		item, err := txn.Get(key)
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil // Already removed
			}
			return err
		}

		var task models.Task
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		}); err != nil {
			return err
		}

		// The index entry is usually gone already (claimed by DequeueReady)
		if err := txn.Delete(indexKey(taskType, task.ExecuteAt, taskID)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(key)
	})
}

// Reschedule persists the task's updated retry state and re-adds it to the
// ready index at its new ExecuteAt.
func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(taskKey(task.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(task.Type, task.ExecuteAt, task.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to reschedule task: %w", err)
	}

	q.logger.Debug().
		Str("task_id", task.ID).
		Int("retry_count", task.RetryCount).
		Str("execute_at", task.ExecuteAt.Format(time.RFC3339)).
		Msg("Task rescheduled")

	return nil
}

// MarkFailed records terminal failure on the task record. The record is kept
// out of the ready index so the task never runs again.
func (q *TaskQueue) MarkFailed(ctx context.Context, task *models.Task, errMsg string) error {
	task.Error = errMsg

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(indexKey(task.Type, task.ExecuteAt, task.ID)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(taskKey(task.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}

	q.logger.Warn().
		Str("task_id", task.ID).
		Str("job_id", task.JobID).
		Str("error", errMsg).
		Msg("Task failed permanently")

	return nil
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	err := q.db.Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte("task_queue:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			suffix := string(it.Item().Key()[len(prefix):])
			// Suffix is "{type}:{20-digit-ts}:{id}"
			if idx := strings.Index(suffix, ":"); idx > 0 {
				seen[suffix[:idx]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan task types: %w", err)
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	return types, nil
}

func (q *TaskQueue) Close() error {
	// Connection lifetime belongs to the storage manager
	return nil
}

// Helpers

func taskKey(id string) []byte {
	return []byte(fmt.Sprintf("task:%s", id))
}

func indexKey(taskType string, executeAt time.Time, id string) []byte {
	ts := executeAt.UnixNano()
	// Zero pad to 20 digits to ensure string sorting works like number sorting
	return []byte(fmt.Sprintf("task_queue:%s:%020d:%s", taskType, ts, id))
}

func parseIndexKey(taskType string, key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("task_queue:%s:", taskType)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefixStr):])
	// Suffix is "{20-digit-ts}:{id}"
	if len(suffix) < 21 {
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	if _, err := fmt.Sscanf(tsStr, "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts).UTC(), id, nil
}
