package tasks

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/batch"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// BatchCrawlHandler runs the batch coordinator for a batch-crawl job
type BatchCrawlHandler struct {
	jobStore    interfaces.JobStore
	coordinator *batch.Coordinator
	logger      arbor.ILogger
}

// NewBatchCrawlHandler creates the batch-crawl task handler
func NewBatchCrawlHandler(jobStore interfaces.JobStore, coordinator *batch.Coordinator, logger arbor.ILogger) *BatchCrawlHandler {
	return &BatchCrawlHandler{
		jobStore:    jobStore,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (h *BatchCrawlHandler) Type() string {
	return models.TaskTypeBatchCrawl
}

func (h *BatchCrawlHandler) Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error) {
	job, err := h.jobStore.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	req, err := models.BatchRequestFromMetadata(job.Metadata)
	if err != nil {
		// Metadata was validated at creation; a parse failure here cannot
		// heal on retry
		return nil, Permanent(fmt.Errorf("invalid batch request: %w", err))
	}
	if len(req.URLs) == 0 {
		return nil, Permanent(fmt.Errorf("batch request has no URLs"))
	}

	result, err := h.coordinator.Run(ctx, jobID, req)
	if err != nil {
		return nil, err
	}

	return jsonMap(struct {
		PerURL      []models.URLResult `json:"per_url"`
		Stats       models.BatchStats  `json:"stats"`
		CollatedURL string             `json:"collated_url,omitempty"`
	}{
		PerURL:      result.URLResults,
		Stats:       result.Stats,
		CollatedURL: result.CollatedURL,
	})
}
