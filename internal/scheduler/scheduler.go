package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// Scheduler runs the periodic cleanup sweep. Each tick creates a cleanup
// job and enqueues its task, so sweeps flow through the same job and task
// machinery as client-submitted work and show up in the job listing.
type Scheduler struct {
	cron     *cron.Cron
	jobStore interfaces.JobStore
	queue    interfaces.TaskQueue
	logger   arbor.ILogger
}

// New creates the cron scheduler from configuration. Returns nil when
// cleanup is disabled.
func New(config *common.Config, jobStore interfaces.JobStore, queue interfaces.TaskQueue, logger arbor.ILogger) (*Scheduler, error) {
	if !config.Cleanup.Enabled {
		logger.Info().Msg("Cleanup scheduler disabled")
		return nil, nil
	}

	s := &Scheduler{
		cron:     cron.New(),
		jobStore: jobStore,
		queue:    queue,
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(config.Cleanup.Schedule, s.tick); err != nil {
		return nil, err
	}

	logger.Info().Str("schedule", config.Cleanup.Schedule).Msg("Cleanup scheduler configured")
	return s, nil
}

// Start begins the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop, waiting for a running tick to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// tick creates one cleanup job and schedules its task immediately
func (s *Scheduler) tick() {
	ctx := context.Background()

	jobID, err := s.jobStore.Create(ctx, models.JobTypeCleanup, map[string]interface{}{
		"trigger": "schedule",
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create cleanup job")
		return
	}

	if _, err := s.queue.Enqueue(ctx, models.TaskTypeCleanup, nil, jobID, 0); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue cleanup task")
		return
	}

	s.logger.Info().Str("job_id", jobID).Msg("Cleanup sweep scheduled")
}
