package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType classifies the work a job represents
type JobType string

const (
	JobTypeImageProcessing JobType = "image-processing"
	JobTypeBatchCrawl      JobType = "batch-crawl"
	JobTypeSingleCrawl     JobType = "single-crawl"
	JobTypeCleanup         JobType = "cleanup"
)

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDeleted    JobStatus = "deleted"
	JobStatusCleanedUp  JobStatus = "cleaned_up"
)

// IsTerminal reports whether the status can never change again.
// Stores drop updates that would move a job out of a terminal status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusDeleted, JobStatusCleanedUp:
		return true
	}
	return false
}

// Job is a long-lived, client-visible unit of work.
//
// Jobs are created pending, move to processing when a handler picks them up,
// and end in exactly one terminal status. The record is never destroyed;
// cleanup marks cleaned_up and keeps the audit trail.
type Job struct {
	ID     string    `json:"job_id" firestore:"job_id" badgerhold:"key"`
	Type   JobType   `json:"job_type" firestore:"job_type"`
	Status JobStatus `json:"status" firestore:"status" badgerhold:"index"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`

	// Metadata is the opaque map supplied at creation (input paths, URL
	// lists, webhook config). Results is populated on completion.
	Metadata map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	Results  map[string]interface{} `json:"results,omitempty" firestore:"results,omitempty"`

	Error string `json:"error,omitempty" firestore:"error,omitempty"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty" firestore:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" firestore:"completed_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty" firestore:"failed_at,omitempty"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" firestore:"deleted_at,omitempty"`
	CleanedUpAt         *time.Time `json:"cleaned_up_at,omitempty" firestore:"cleaned_up_at,omitempty"`
}

// NewJob creates a pending job with a fresh random ID
func NewJob(jobType JobType, metadata map[string]interface{}) *Job {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
}

// IsTerminal reports whether the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep-enough copy for safe hand-out from in-memory stores.
// Map values are copied one level deep; nested values are shared.
func (j *Job) Clone() *Job {
	c := *j
	if j.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			c.Metadata[k] = v
		}
	}
	if j.Results != nil {
		c.Results = make(map[string]interface{}, len(j.Results))
		for k, v := range j.Results {
			c.Results[k] = v
		}
	}
	return &c
}

// JobPatch is a partial update applied by JobStore.Update. Nil fields are
// left untouched; map fields are merged key-wise into the existing maps.
type JobPatch struct {
	Status   *JobStatus
	Metadata map[string]interface{}
	Results  map[string]interface{}
	Error    *string

	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	FailedAt            *time.Time
	DeletedAt           *time.Time
	CleanedUpAt         *time.Time
}

// Apply merges the patch into the job and bumps UpdatedAt, which never moves
// backwards. Returns false without modifying anything when the job is in a
// terminal status and the patch would change it. The one permitted terminal
// transition is into cleaned_up, which the retention sweep applies to
// settled jobs.
func (p *JobPatch) Apply(j *Job) bool {
	if j.IsTerminal() && p.Status != nil && *p.Status != j.Status {
		if *p.Status != JobStatusCleanedUp {
			return false
		}
	}

	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.Metadata != nil {
		if j.Metadata == nil {
			j.Metadata = make(map[string]interface{}, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			j.Metadata[k] = v
		}
	}
	if p.Results != nil {
		if j.Results == nil {
			j.Results = make(map[string]interface{}, len(p.Results))
		}
		for k, v := range p.Results {
			j.Results[k] = v
		}
	}
	if p.ProcessingStartedAt != nil {
		j.ProcessingStartedAt = p.ProcessingStartedAt
	}
	if p.CompletedAt != nil {
		j.CompletedAt = p.CompletedAt
	}
	if p.FailedAt != nil {
		j.FailedAt = p.FailedAt
	}
	if p.DeletedAt != nil {
		j.DeletedAt = p.DeletedAt
	}
	if p.CleanedUpAt != nil {
		j.CleanedUpAt = p.CleanedUpAt
	}

	if now := time.Now().UTC(); now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	return true
}

// CompletedPatch builds the patch every handler applies on success
func CompletedPatch(results map[string]interface{}) *JobPatch {
	status := JobStatusCompleted
	now := time.Now().UTC()
	return &JobPatch{
		Status:      &status,
		Results:     results,
		CompletedAt: &now,
	}
}

// FailedPatch builds the patch every handler applies on failure
func FailedPatch(errMsg string) *JobPatch {
	status := JobStatusFailed
	now := time.Now().UTC()
	return &JobPatch{
		Status:   &status,
		Error:    &errMsg,
		FailedAt: &now,
	}
}

// ProcessingPatch marks the pending -> processing transition
func ProcessingPatch() *JobPatch {
	status := JobStatusProcessing
	now := time.Now().UTC()
	return &JobPatch{
		Status:              &status,
		ProcessingStartedAt: &now,
	}
}
