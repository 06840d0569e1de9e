package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID
func NewJobID() string {
	return uuid.New().String()
}

// NewTaskID generates a unique task ID with the "task_" prefix
// Format: task_<uuid>
func NewTaskID() string {
	return "task_" + uuid.New().String()
}
