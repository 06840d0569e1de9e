package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/ternarybob/arbor"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// TaskQueue implements the TaskQueue interface on Cloud Tasks.
//
// Enqueue creates an HTTP push task addressed to
// POST {service_url}/tasks/{type}/{job_id} with an OIDC token. Dispatch,
// retry and backoff belong to the managed queue, so the local-only
// operations return ErrCloudManaged.
type TaskQueue struct {
	client     *cloudtasks.Client
	queuePath  string
	serviceURL string
	serviceSA  string
	logger     arbor.ILogger
}

// NewTaskQueue creates a Cloud Tasks-backed task queue
func NewTaskQueue(ctx context.Context, cfg *common.CloudConfig, logger arbor.ILogger) (interfaces.TaskQueue, error) {
	if cfg.Project == "" || cfg.ServiceURL == "" {
		return nil, fmt.Errorf("cloud task queue requires a GCP project and service URL: %w", interfaces.ErrBackendUnavailable)
	}

	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud tasks client: %w", err)
	}

	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s", cfg.Project, cfg.Location, cfg.QueueID)
	logger.Info().Str("queue", queuePath).Str("service_url", cfg.ServiceURL).Msg("Cloud Tasks queue initialized")

	return &TaskQueue{
		client:     client,
		queuePath:  queuePath,
		serviceURL: cfg.ServiceURL,
		serviceSA:  cfg.ServiceAccount,
		logger:     logger,
	}, nil
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delaySeconds int) (string, error) {
	task := models.NewTask(taskType, payload, jobID, delaySeconds)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	httpReq := &taskspb.HttpRequest{
		HttpMethod: taskspb.HttpMethod_POST,
		Url:        fmt.Sprintf("%s/tasks/%s/%s", q.serviceURL, taskType, jobID),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
	if q.serviceSA != "" {
		httpReq.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{
			OidcToken: &taskspb.OidcToken{
				ServiceAccountEmail: q.serviceSA,
			},
		}
	}

	req := &taskspb.CreateTaskRequest{
		Parent: q.queuePath,
		Task: &taskspb.Task{
			// Named tasks give Cloud Tasks-side dedup on re-submission
			Name:         fmt.Sprintf("%s/tasks/%s", q.queuePath, task.ID),
			ScheduleTime: timestamppb.New(task.ExecuteAt),
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: httpReq,
			},
		},
	}

	if _, err := q.client.CreateTask(ctx, req); err != nil {
		return "", fmt.Errorf("failed to create cloud task: %w", err)
	}

	q.logger.Debug().
		Str("task_id", task.ID).
		Str("task_type", taskType).
		Str("job_id", jobID).
		Int("delay_seconds", delaySeconds).
		Msg("Cloud task created")

	return task.ID, nil
}

func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	return nil, interfaces.ErrCloudManaged
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	return interfaces.ErrCloudManaged
}

func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task) error {
	return interfaces.ErrCloudManaged
}

func (q *TaskQueue) MarkFailed(ctx context.Context, task *models.Task, errMsg string) error {
	return interfaces.ErrCloudManaged
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	return nil, interfaces.ErrCloudManaged
}

func (q *TaskQueue) Close() error {
	return q.client.Close()
}
