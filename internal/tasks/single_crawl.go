package tasks

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/batch"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// SingleCrawlHandler serves the legacy one-URL crawl endpoint. It runs the
// batch coordinator with a single URL so the artifact layout and failure
// semantics stay identical to a one-element batch.
type SingleCrawlHandler struct {
	jobStore    interfaces.JobStore
	coordinator *batch.Coordinator
	logger      arbor.ILogger
}

// NewSingleCrawlHandler creates the single-crawl task handler
func NewSingleCrawlHandler(jobStore interfaces.JobStore, coordinator *batch.Coordinator, logger arbor.ILogger) *SingleCrawlHandler {
	return &SingleCrawlHandler{
		jobStore:    jobStore,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (h *SingleCrawlHandler) Type() string {
	return models.TaskTypeSingleCrawl
}

func (h *SingleCrawlHandler) Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error) {
	job, err := h.jobStore.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	req, err := models.BatchRequestFromMetadata(job.Metadata)
	if err != nil {
		return nil, Permanent(fmt.Errorf("invalid crawl request: %w", err))
	}
	if len(req.URLs) != 1 {
		return nil, Permanent(fmt.Errorf("single crawl expects exactly one URL, got %d", len(req.URLs)))
	}

	result, err := h.coordinator.Run(ctx, jobID, req)
	if err != nil {
		return nil, err
	}

	ur := result.URLResults[0]
	if ur.Status != models.URLStatusCompleted {
		// One URL means its failure is the job's failure
		return nil, Permanent(fmt.Errorf("crawl failed: %s", ur.Error))
	}

	return jsonMap(struct {
		URL           string `json:"url"`
		MarkdownURL   string `json:"markdown_url"`
		JSONURL       string `json:"json_url"`
		ScreenshotURL string `json:"screenshot_url,omitempty"`
	}{
		URL:           ur.URL,
		MarkdownURL:   ur.MarkdownURL,
		JSONURL:       ur.JSONURL,
		ScreenshotURL: ur.ScreenshotURL,
	})
}
