package interfaces

import "errors"

var (
	// ErrJobNotFound is returned when a job ID does not exist in the job store
	ErrJobNotFound = errors.New("job not found")

	// ErrTaskNotFound is returned when a task ID does not exist in the task queue
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTask is returned by DequeueReady when no task is ready to run
	ErrNoTask = errors.New("no tasks ready")

	// ErrArtifactNotFound is returned when a logical path has no stored bytes
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be reached
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrCloudManaged is returned by local-only queue operations when the
	// cloud backend is active; scheduling and retry belong to the managed queue
	ErrCloudManaged = errors.New("operation handled by managed cloud queue")

	// ErrTerminalState is returned when an update would move a job out of a
	// terminal status; such updates are ignored by the store
	ErrTerminalState = errors.New("job is in a terminal state")

	// ErrOCRUnavailable is returned by the stub OCR engine when no provider
	// is configured
	ErrOCRUnavailable = errors.New("no OCR engine configured")
)
