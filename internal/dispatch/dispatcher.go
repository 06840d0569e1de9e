package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/tasks"
)

// errorSleep is the pause after a queue error before the next iteration
const errorSleep = 5 * time.Second

// Dispatcher is the local-mode delivery loop: a single goroutine that polls
// the task queue for ready tasks and delivers each one over loopback HTTP to
// the same /tasks/{type}/{job_id} endpoint Cloud Tasks pushes to in cloud
// mode, so one endpoint serves both delivery paths.
//
// Retry policy: a non-2xx response reschedules the task with linear backoff
// until its retry budget runs out, then the task and its job are failed.
type Dispatcher struct {
	queue   interfaces.TaskQueue
	runtime *tasks.Runtime
	client  *http.Client
	baseURL string

	pollInterval time.Duration
	batchSize    int
	maxRetries   int

	running atomic.Bool
	logger  arbor.ILogger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher that delivers to the server's own
// listen address
func NewDispatcher(queue interfaces.TaskQueue, runtime *tasks.Runtime, config *common.Config, logger arbor.ILogger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	batchSize := config.Queue.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	return &Dispatcher{
		queue:        queue,
		runtime:      runtime,
		client:       &http.Client{Timeout: 10 * time.Minute},
		baseURL:      fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port),
		pollInterval: config.PollInterval(),
		batchSize:    batchSize,
		maxRetries:   config.Queue.MaxRetries,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the delivery loop. At most one loop runs per dispatcher;
// repeated calls are no-ops.
func (d *Dispatcher) Start() {
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Warn().Msg("Task dispatcher already running")
		return
	}

	d.logger.Info().
		Dur("poll_interval", d.pollInterval).
		Str("base_url", d.baseURL).
		Msg("Starting task dispatcher")

	go d.loop()
}

// Stop signals the loop to exit after its current delivery
func (d *Dispatcher) Stop() {
	d.logger.Info().Msg("Stopping task dispatcher")
	d.cancel()
}

// loop polls every registered task type, sleeping between iterations and
// backing off after queue errors
func (d *Dispatcher) loop() {
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug().Msg("Task dispatcher stopped")
			return
		default:
		}

		if errored := d.poll(); errored {
			d.sleep(errorSleep)
		} else {
			d.sleep(d.pollInterval)
		}
	}
}

func (d *Dispatcher) sleep(dur time.Duration) {
	select {
	case <-d.ctx.Done():
	case <-time.After(dur):
	}
}

// poll pulls and delivers ready tasks for every type with queued work.
// Reports whether any queue read failed unexpectedly.
func (d *Dispatcher) poll() bool {
	taskTypes, err := d.queue.TaskTypes(d.ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list queued task types")
		return true
	}

	errored := false
	for _, taskType := range taskTypes {
		ready, err := d.queue.DequeueReady(d.ctx, taskType, d.batchSize)
		if err != nil {
			if !errors.Is(err, interfaces.ErrNoTask) {
				d.logger.Warn().Err(err).Str("task_type", taskType).Msg("Failed to poll task queue")
				errored = true
			}
			continue
		}

		for _, task := range ready {
			d.deliver(task)
		}
	}
	return errored
}

// deliver posts one task to the handler endpoint and settles the queue record
func (d *Dispatcher) deliver(task *models.Task) {
	startTime := time.Now()
	err := d.post(task)
	duration := time.Since(startTime)

	if err == nil {
		if err := d.queue.Remove(d.ctx, task.Type, task.ID); err != nil {
			d.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to remove delivered task")
		}
		d.logger.Info().
			Str("task_id", task.ID).
			Str("task_type", task.Type).
			Str("job_id", task.JobID).
			Dur("duration", duration).
			Msg("Task delivered")
		return
	}

	// The configured budget (MAX_RETRIES) wins over the default stamped on
	// the task at enqueue
	maxRetries := d.maxRetries
	if maxRetries <= 0 {
		maxRetries = task.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	if task.RetryCount >= maxRetries {
		d.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Str("job_id", task.JobID).
			Int("retry_count", task.RetryCount).
			Msg("Task retries exhausted")

		if mfErr := d.queue.MarkFailed(d.ctx, task, err.Error()); mfErr != nil {
			d.logger.Warn().Err(mfErr).Str("task_id", task.ID).Msg("Failed to mark task failed")
		}
		d.runtime.FailJob(d.ctx, task.JobID, fmt.Sprintf("task failed after %d attempts: %v", task.RetryCount+1, err))
		return
	}

	task.RetryCount++
	task.ExecuteAt = task.NextExecuteAt()

	d.logger.Warn().
		Err(err).
		Str("task_id", task.ID).
		Str("job_id", task.JobID).
		Int("retry_count", task.RetryCount).
		Str("execute_at", task.ExecuteAt.Format(time.RFC3339)).
		Msg("Task delivery failed, rescheduling")

	if rsErr := d.queue.Reschedule(d.ctx, task); rsErr != nil {
		d.logger.Error().Err(rsErr).Str("task_id", task.ID).Msg("Failed to reschedule task")
	}
}

// post delivers the task payload to the handler endpoint. Any non-2xx
// response is a retryable failure; permanent failures come back 2xx with
// success=false after the handler has already failed the job.
func (d *Dispatcher) post(task *models.Task) error {
	body, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/tasks/%s/%s", d.baseURL, task.Type, task.JobID)
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("handler returned %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
