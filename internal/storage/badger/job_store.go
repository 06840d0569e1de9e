package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// JobStore implements the JobStore interface on badgerhold
type JobStore struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Serializes read-modify-write updates; badgerhold upserts alone would
	// let concurrent patches clobber each other's merged maps.
	updateMu sync.Mutex
}

// NewJobStore creates a new badger-backed job store
func NewJobStore(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (string, error) {
	job := models.NewJob(jobType, metadata)

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().Str("job_id", job.ID).Str("job_type", string(jobType)).Msg("Job created")
	return job.ID, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, jobID string, patch *models.JobPatch) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrJobNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if !patch.Apply(&job) {
		// Terminal status latched; drop the update
		s.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Ignoring update to terminal job")
		return nil
	}

	if err := s.db.Store().Upsert(jobID, &job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	var query *badgerhold.Query
	if opts != nil && opts.Status != "" {
		query = badgerhold.Where("Status").Eq(opts.Status).Index("Status")
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	// Newest first; equal timestamps fall back to ID so order is stable
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	if opts != nil && opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStore) Close() error {
	// Connection lifetime belongs to the storage manager
	return nil
}
