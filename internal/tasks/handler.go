package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler processes one task delivery for a job. Deliveries are at least
// once, so Execute must be idempotent; handlers skip work when the job has
// already reached a terminal status.
type Handler interface {
	// Type returns the task type this handler owns
	Type() string

	// Execute runs the task and returns the results to record on the job.
	// A plain error is treated as transient and the delivery is retried;
	// wrap with Permanent to fail the job immediately.
	Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error)
}

// PermanentError marks a failure that retrying cannot fix. The runtime
// fails the job and stops redelivery.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error as non-retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether the error chain contains a permanent failure
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// Registry maps task types to their handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler; registering a duplicate type is a programming error
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Type()]; exists {
		return fmt.Errorf("handler already registered for task type %s", h.Type())
	}
	r.handlers[h.Type()] = h
	return nil
}

// Get returns the handler for a task type
func (r *Registry) Get(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}
