package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/artifacts"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/tasks"
)

// CrawlHandler serves POST /api/markdown: legacy single-URL synchronous
// crawls, synchronous batches, and asynchronous batches.
type CrawlHandler struct {
	jobStore interfaces.JobStore
	queue    interfaces.TaskQueue
	runtime  *tasks.Runtime
	store    interfaces.ArtifactStore
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewCrawlHandler creates the crawl submission handler
func NewCrawlHandler(jobStore interfaces.JobStore, queue interfaces.TaskQueue, runtime *tasks.Runtime, store interfaces.ArtifactStore, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{
		jobStore: jobStore,
		queue:    queue,
		runtime:  runtime,
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// markdownRequest is the union of the two shapes /api/markdown accepts: the
// legacy single-URL form and the batch form
type markdownRequest struct {
	URL string `json:"url,omitempty"`

	models.BatchRequest
}

// MarkdownHandler handles POST /api/markdown.
//
// A body with "url" runs one synchronous crawl and returns the markdown
// inline. A body with "urls" runs a batch: asynchronously by default (202
// with predicted artifact paths), or in-request when async=false.
func (h *CrawlHandler) MarkdownHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req markdownRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.URL != "" && len(req.URLs) == 0 {
		h.legacyCrawl(w, r, &req)
		return
	}

	if len(req.URLs) > models.MaxBatchURLs {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("too many URLs: %d exceeds the limit of %d", len(req.URLs), models.MaxBatchURLs))
		return
	}
	if err := h.validate.Struct(&req.BatchRequest); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid batch request: %v", err))
		return
	}

	if req.IsAsync() {
		h.asyncBatch(w, r, &req.BatchRequest)
	} else {
		h.syncBatch(w, r, &req.BatchRequest)
	}
}

// legacyCrawl serves the backward-compatible single-URL shape: the crawl
// runs inside the request and the markdown comes back in the body. A job
// record is still created so the crawl shows up in the job listing.
func (h *CrawlHandler) legacyCrawl(w http.ResponseWriter, r *http.Request, req *markdownRequest) {
	if err := h.validate.Var(req.URL, "required,url"); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid url: %v", err))
		return
	}

	batchReq := &models.BatchRequest{
		URLs:         []string{req.URL},
		Webhook:      req.Webhook,
		CrawlOptions: req.CrawlOptions,
	}

	jobID, ok := h.createJob(w, r, models.JobTypeSingleCrawl, batchReq)
	if !ok {
		return
	}

	if err := h.runtime.Execute(r.Context(), models.TaskTypeSingleCrawl, jobID, nil); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("crawl failed: %v", err))
		return
	}

	job, err := h.jobStore.Get(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load crawl results")
		return
	}

	markdownURL, _ := job.Results["markdown_url"].(string)
	markdown, err := h.store.Get(r.Context(), markdownURL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load crawl report")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"url":          req.URL,
		"markdown":     string(markdown),
		"markdown_url": markdownURL,
		"json_url":     job.Results["json_url"],
	})
}

// asyncBatch creates the job, enqueues the batch-crawl task, and answers
// 202 with the predicted artifact paths so clients can start polling them
// before the crawls finish
func (h *CrawlHandler) asyncBatch(w http.ResponseWriter, r *http.Request, req *models.BatchRequest) {
	jobID, ok := h.createJob(w, r, models.JobTypeBatchCrawl, req)
	if !ok {
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), models.TaskTypeBatchCrawl, nil, jobID, 0); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to enqueue batch task")
		h.jobStore.Update(r.Context(), jobID, models.FailedPatch("failed to enqueue task"))
		WriteError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Int("urls", len(req.URLs)).
		Msg("Batch crawl job created")

	response := map[string]interface{}{
		"success":    true,
		"mode":       "batch_async",
		"job_id":     jobID,
		"status_url": "/api/jobs/" + jobID,
		"results":    predictedResults(jobID, req),
	}
	if req.Collate {
		response["collated_url"] = artifacts.PredictedCollatedPath(jobID)
	}
	WriteJSON(w, http.StatusAccepted, response)
}

// syncBatch runs the whole batch inside the request through the same task
// runtime the async path uses, so lifecycle and webhook behavior match
func (h *CrawlHandler) syncBatch(w http.ResponseWriter, r *http.Request, req *models.BatchRequest) {
	jobID, ok := h.createJob(w, r, models.JobTypeBatchCrawl, req)
	if !ok {
		return
	}

	if err := h.runtime.Execute(r.Context(), models.TaskTypeBatchCrawl, jobID, nil); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("batch crawl failed: %v", err))
		return
	}

	job, err := h.jobStore.Get(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load batch results")
		return
	}

	response := map[string]interface{}{
		"success": true,
		"mode":    "batch_sync",
		"job_id":  jobID,
		"results": job.Results["per_url"],
		"stats":   job.Results["stats"],
	}
	if collatedURL, ok := job.Results["collated_url"]; ok {
		response["collated_url"] = collatedURL
	}
	WriteJSON(w, http.StatusOK, response)
}

// createJob persists the job record for a submission
func (h *CrawlHandler) createJob(w http.ResponseWriter, r *http.Request, jobType models.JobType, req *models.BatchRequest) (string, bool) {
	metadata, err := req.ToMetadata()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to encode job metadata")
		return "", false
	}

	jobID, err := h.jobStore.Create(r.Context(), jobType, metadata)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create crawl job")
		WriteError(w, http.StatusInternalServerError, "failed to create job")
		return "", false
	}
	return jobID, true
}

// predictedResults builds the stub per-URL results returned before an async
// batch settles. The paths are authoritative: crawls materialize them, and
// failed URLs get stub artifacts at the same locations.
func predictedResults(jobID string, req *models.BatchRequest) []models.URLResult {
	results := make([]models.URLResult, len(req.URLs))
	for i, u := range req.URLs {
		results[i] = models.URLResult{
			URL:         u,
			Index:       i,
			Status:      models.URLStatusProcessing,
			MarkdownURL: artifacts.PredictedReportPath(jobID, i),
			JSONURL:     artifacts.PredictedDataPath(jobID, i),
		}
		if req.CrawlOptions.Screenshot {
			results[i].ScreenshotURL = artifacts.PredictedScreenshotPath(jobID, i)
		}
	}
	return results
}
