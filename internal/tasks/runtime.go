package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/webhook"
)

// Runtime frames every task delivery with the shared job lifecycle: load
// the job, skip if it already settled, mark processing, run the handler,
// then record the terminal outcome and emit the webhook. Both the local
// dispatcher and the cloud push endpoint deliver through here, so the two
// modes cannot drift.
type Runtime struct {
	registry *Registry
	jobStore interfaces.JobStore
	emitter  *webhook.Emitter
	logger   arbor.ILogger
}

// NewRuntime creates a task runtime over the given registry
func NewRuntime(registry *Registry, jobStore interfaces.JobStore, emitter *webhook.Emitter, logger arbor.ILogger) *Runtime {
	return &Runtime{
		registry: registry,
		jobStore: jobStore,
		emitter:  emitter,
		logger:   logger,
	}
}

// Execute delivers one task. The returned error is nil on success or
// idempotent skip, a PermanentError when the job was failed, and any other
// error when the delivery should be retried.
func (rt *Runtime) Execute(ctx context.Context, taskType, jobID string, payload map[string]interface{}) error {
	handler, ok := rt.registry.Get(taskType)
	if !ok {
		err := Permanent(fmt.Errorf("no handler registered for task type %s", taskType))
		rt.FailJob(ctx, jobID, err.Error())
		return err
	}

	job, err := rt.jobStore.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			// Nothing to run against and nothing to fail; drop the delivery
			rt.logger.Warn().Str("job_id", jobID).Str("task_type", taskType).Msg("Task delivered for unknown job")
			return Permanent(err)
		}
		return err
	}

	if job.IsTerminal() {
		// Redelivery after the job settled; at-least-once makes this normal
		rt.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Skipping task for settled job")
		return nil
	}

	if job.Status == models.JobStatusPending {
		if err := rt.jobStore.Update(ctx, jobID, models.ProcessingPatch()); err != nil {
			return err
		}
	}

	rt.logger.Info().Str("job_id", jobID).Str("task_type", taskType).Msg("Task started")

	results, err := handler.Execute(ctx, jobID, payload)
	if err != nil {
		if IsPermanent(err) {
			rt.FailJob(ctx, jobID, err.Error())
			return err
		}
		rt.logger.Warn().Err(err).Str("job_id", jobID).Str("task_type", taskType).Msg("Task failed, will retry")
		return err
	}

	if err := rt.jobStore.Update(ctx, jobID, models.CompletedPatch(results)); err != nil {
		return err
	}

	rt.logger.Info().Str("job_id", jobID).Str("task_type", taskType).Msg("Task completed")
	rt.notify(ctx, jobID)
	return nil
}

// FailJob records terminal failure on the job and notifies its webhook.
// Safe to call for jobs that already settled; the store drops the update.
func (rt *Runtime) FailJob(ctx context.Context, jobID, errMsg string) {
	if err := rt.jobStore.Update(ctx, jobID, models.FailedPatch(errMsg)); err != nil {
		if !errors.Is(err, interfaces.ErrJobNotFound) {
			rt.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to record job failure")
		}
		return
	}
	rt.notify(ctx, jobID)
}

// notify emits the webhook for a settled job, if one is configured
func (rt *Runtime) notify(ctx context.Context, jobID string) {
	job, err := rt.jobStore.Get(ctx, jobID)
	if err != nil {
		rt.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to reload job for webhook")
		return
	}
	if !job.IsTerminal() {
		return
	}
	rt.emitter.Emit(ctx, models.WebhookFromMetadata(job.Metadata), job)
}
