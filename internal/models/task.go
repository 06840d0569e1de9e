package models

import (
	"time"

	"github.com/google/uuid"
)

// Task type names. Each maps to a registered handler and, over HTTP,
// to POST /tasks/<type>/<job_id>.
const (
	TaskTypeProcessImage = "process-image"
	TaskTypeBatchCrawl   = "batch-crawl"
	TaskTypeSingleCrawl  = "single-crawl"
	TaskTypeCleanup      = "cleanup"
)

// DefaultMaxRetries is the delivery attempt budget for a task before it is
// marked failed and the owning job is failed with it.
const DefaultMaxRetries = 3

// RetryBackoff is the linear backoff unit: a task on retry N is scheduled
// N*RetryBackoff after the failed attempt.
const RetryBackoff = 30 * time.Second

// Task is one scheduled execution of a handler against a job. Tasks are
// short-lived queue records; the job carries the durable state.
type Task struct {
	ID      string `json:"task_id"`
	Type    string `json:"task_type"`
	JobID   string `json:"job_id"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ExecuteAt  time.Time `json:"execute_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`

	Error string `json:"error,omitempty"`
}

// NewTask creates a task scheduled delaySeconds from now
func NewTask(taskType string, payload map[string]interface{}, jobID string, delaySeconds int) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		JobID:      jobID,
		Payload:    payload,
		CreatedAt:  now,
		ExecuteAt:  now.Add(time.Duration(delaySeconds) * time.Second),
		MaxRetries: DefaultMaxRetries,
	}
}

// CanRetry reports whether another delivery attempt is allowed
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// NextExecuteAt computes the linear-backoff schedule for the next attempt,
// assuming RetryCount has already been incremented for that attempt.
func (t *Task) NextExecuteAt() time.Time {
	return time.Now().UTC().Add(time.Duration(t.RetryCount) * RetryBackoff)
}
