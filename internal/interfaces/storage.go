package interfaces

import (
	"context"

	"github.com/ternarybob/wraith/internal/models"
)

// JobListOptions filters and bounds a job listing.
// Status is matched exactly when non-empty; Limit of 0 means no cap.
type JobListOptions struct {
	Status models.JobStatus
	Limit  int
}

// JobStore persists job records through their lifecycle.
// Backends: Firestore (cloud), Badger (local), in-memory (fallback).
// Selection happens once at startup and is fixed for the process lifetime.
type JobStore interface {
	// Create persists a new job in pending status and returns its ID.
	Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (string, error)

	// Get returns the job or ErrJobNotFound.
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// Update merges the patch into the record field-wise (last writer wins)
	// and bumps UpdatedAt. Patches that would move a job out of a terminal
	// status are ignored. Returns ErrJobNotFound for unknown IDs.
	Update(ctx context.Context, jobID string, patch *models.JobPatch) error

	// List returns jobs ordered by CreatedAt descending, ties broken by
	// job ID, optionally filtered by status and capped by limit.
	List(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)

	Close() error
}

// TaskQueue schedules task records for future execution.
//
// DequeueReady, Remove, Reschedule and TaskTypes are local-mode operations:
// the cloud backend delegates scheduling and retry to the managed queue and
// returns ErrCloudManaged for them.
type TaskQueue interface {
	// Enqueue persists the task and schedules it to run delaySeconds from now.
	Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delaySeconds int) (string, error)

	// DequeueReady returns up to max tasks of the given type whose ExecuteAt
	// has passed, ordered by ExecuteAt ascending.
	DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error)

	// Remove deletes the task from the ready set and its record.
	Remove(ctx context.Context, taskType, taskID string) error

	// Reschedule re-adds the task to the ready set at its new ExecuteAt,
	// persisting the updated retry count.
	Reschedule(ctx context.Context, task *models.Task) error

	// MarkFailed records terminal failure on the task record and removes it
	// from the ready set. The owning job is not touched here.
	MarkFailed(ctx context.Context, task *models.Task, errMsg string) error

	// TaskTypes returns the task types that currently have queued tasks.
	TaskTypes(ctx context.Context) ([]string, error)

	Close() error
}

// ArtifactStore reads and writes opaque blobs by logical path
// ("<namespace>/<filename>"). Writes are atomic at the logical-path level
// and overwriting a path is idempotent.
type ArtifactStore interface {
	// Save writes the bytes and returns the logical path, which is a pure
	// function of namespace and filename.
	Save(ctx context.Context, data []byte, namespace, filename string) (string, error)

	// Get returns the stored bytes or ErrArtifactNotFound.
	Get(ctx context.Context, logicalPath string) ([]byte, error)

	// Delete removes the blob; returns true if it existed.
	Delete(ctx context.Context, logicalPath string) (bool, error)

	// Exists reports whether the logical path holds bytes.
	Exists(ctx context.Context, logicalPath string) (bool, error)
}
