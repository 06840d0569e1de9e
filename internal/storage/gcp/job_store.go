package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/ternarybob/arbor"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

const jobsCollection = "jobs"

// JobStore implements the JobStore interface on Firestore. Used when the
// service runs on Cloud Run; each job is one document in the jobs collection.
type JobStore struct {
	client *firestore.Client
	logger arbor.ILogger
}

// NewJobStore creates a Firestore-backed job store
func NewJobStore(ctx context.Context, cfg *common.CloudConfig, logger arbor.ILogger) (interfaces.JobStore, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("firestore job store requires a GCP project: %w", interfaces.ErrBackendUnavailable)
	}

	client, err := firestore.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	logger.Info().Str("project", cfg.Project).Msg("Firestore job store initialized")

	return &JobStore{
		client: client,
		logger: logger,
	}, nil
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (string, error) {
	job := models.NewJob(jobType, metadata)

	if _, err := s.client.Collection(jobsCollection).Doc(job.ID).Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().Str("job_id", job.ID).Str("job_type", string(jobType)).Msg("Job created")
	return job.ID, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	snap, err := s.client.Collection(jobsCollection).Doc(jobID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// Update runs the read-patch-write cycle in a Firestore transaction so
// concurrent patches from parallel task deliveries cannot clobber each other.
func (s *JobStore) Update(ctx context.Context, jobID string, patch *models.JobPatch) error {
	doc := s.client.Collection(jobsCollection).Doc(jobID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return interfaces.ErrJobNotFound
			}
			return err
		}

		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return fmt.Errorf("failed to decode job %s: %w", jobID, err)
		}

		if !patch.Apply(&job) {
			// Terminal status latched; drop the update
			s.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Ignoring update to terminal job")
			return nil
		}

		return tx.Set(doc, &job)
	})
	if err != nil {
		if err == interfaces.ErrJobNotFound {
			return err
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := s.client.Collection(jobsCollection).Query

	if opts != nil && opts.Status != "" {
		query = query.Where("status", "==", string(opts.Status))
	}

	// Firestore appends the document ID as the final sort key, which gives
	// the stable tie-break for equal timestamps
	query = query.OrderBy("created_at", firestore.Desc)

	if opts != nil && opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var jobs []*models.Job
	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}

		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *JobStore) Close() error {
	return s.client.Close()
}
