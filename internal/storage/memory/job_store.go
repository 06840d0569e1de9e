package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// JobStore is the in-memory fallback used when no durable backend is
// available. State is lost on restart; suitable for tests and dev only.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	logger arbor.ILogger
}

// NewJobStore creates an in-memory job store
func NewJobStore(logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		jobs:   make(map[string]*models.Job),
		logger: logger,
	}
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (string, error) {
	job := models.NewJob(jobType, metadata)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.ID, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *JobStore) Update(ctx context.Context, jobID string, patch *models.JobPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return interfaces.ErrJobNotFound
	}

	// Apply reports false when the terminal status latched; drop silently
	patch.Apply(job)
	return nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	s.mu.RLock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if opts != nil && opts.Status != "" && job.Status != opts.Status {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	if opts != nil && opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

func (s *JobStore) Close() error {
	return nil
}
