package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/artifacts"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// MaxWorkers caps concurrent page fetches within one batch
const MaxWorkers = 5

// Coordinator fans a batch of URLs out to the crawler and writes one report
// and one data artifact per URL at the paths predicted when the job was
// created. Failed URLs still get artifacts, stub content, so every predicted
// path resolves once the batch settles.
type Coordinator struct {
	crawler interfaces.Crawler
	store   interfaces.ArtifactStore
	logger  arbor.ILogger
}

// Result is the settled outcome of a batch run
type Result struct {
	URLResults  []models.URLResult
	Stats       models.BatchStats
	CollatedURL string
}

// NewCoordinator creates a batch coordinator
func NewCoordinator(crawler interfaces.Crawler, store interfaces.ArtifactStore, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		crawler: crawler,
		store:   store,
		logger:  logger,
	}
}

// Run crawls every URL in the request with bounded concurrency and writes
// all artifacts. It only fails on artifact-store errors; crawl failures are
// absorbed into per-URL results.
func (c *Coordinator) Run(ctx context.Context, jobID string, req *models.BatchRequest) (*Result, error) {
	n := len(req.URLs)
	workers := MaxWorkers
	if n < workers {
		workers = n
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("urls", n).
		Int("workers", workers).
		Msg("Batch crawl started")

	results := make([]models.URLResult, n)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, pageURL := range req.URLs {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = c.crawlOne(ctx, jobID, i, pageURL, &req.CrawlOptions)
		}(i, pageURL)
	}
	wg.Wait()

	stats := models.BatchStats{TotalURLs: n}
	for i := range results {
		if results[i].Status == models.URLStatusCompleted {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}

	result := &Result{
		URLResults: results,
		Stats:      stats,
	}

	if req.Collate {
		collatedURL, err := c.writeCollated(ctx, jobID, req.CollateOptions, results, stats)
		if err != nil {
			return nil, err
		}
		result.CollatedURL = collatedURL
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("successful", stats.Successful).
		Int("failed", stats.Failed).
		Msg("Batch crawl settled")

	return result, nil
}

// crawlOne fetches a single URL and writes its artifacts. Every outcome,
// including crawl and write failures, produces a complete URLResult with the
// predicted paths filled in.
func (c *Coordinator) crawlOne(ctx context.Context, jobID string, i int, pageURL string, opts *models.CrawlOptions) models.URLResult {
	result := models.URLResult{
		URL:         pageURL,
		Index:       i,
		Status:      models.URLStatusFailed,
		MarkdownURL: artifacts.PredictedReportPath(jobID, i),
		JSONURL:     artifacts.PredictedDataPath(jobID, i),
	}
	if opts != nil && opts.Screenshot {
		result.ScreenshotURL = artifacts.PredictedScreenshotPath(jobID, i)
	}

	crawled, err := c.crawler.Crawl(ctx, pageURL, opts)
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn().Err(err).Str("job_id", jobID).Str("url", pageURL).Msg("URL crawl failed")
		c.writeStubArtifacts(ctx, jobID, i, &result)
		return result
	}
	result.Title = crawled.Title

	namespace := artifacts.BatchNamespace(jobID)

	report := renderReport(crawled)
	if _, err := c.store.Save(ctx, []byte(report), namespace, artifacts.ReportFilename(i)); err != nil {
		result.Error = fmt.Sprintf("failed to save report: %v", err)
		return result
	}

	data, err := json.MarshalIndent(urlData{
		URL:        crawled.URL,
		Title:      crawled.Title,
		StatusCode: crawled.StatusCode,
		Links:      crawled.Links,
		FetchedAt:  crawled.FetchedAt,
		DurationMs: crawled.Duration.Milliseconds(),
		Success:    true,
	}, "", "  ")
	if err != nil {
		result.Error = fmt.Sprintf("failed to encode data: %v", err)
		return result
	}
	if _, err := c.store.Save(ctx, data, namespace, artifacts.DataFilename(i)); err != nil {
		result.Error = fmt.Sprintf("failed to save data: %v", err)
		return result
	}

	if opts != nil && opts.Screenshot && len(crawled.Screenshot) > 0 {
		if _, err := c.store.Save(ctx, crawled.Screenshot, namespace, artifacts.ScreenshotFilename(i)); err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Str("url", pageURL).Msg("Failed to save screenshot")
			result.ScreenshotURL = ""
		}
	}

	result.Status = models.URLStatusCompleted
	return result
}

// writeStubArtifacts fills the predicted paths for a failed URL so clients
// polling them find an explanation instead of a 404
func (c *Coordinator) writeStubArtifacts(ctx context.Context, jobID string, i int, result *models.URLResult) {
	namespace := artifacts.BatchNamespace(jobID)

	stub := fmt.Sprintf("# Crawl Failed\n\n- URL: %s\n- Error: %s\n", result.URL, result.Error)
	if _, err := c.store.Save(ctx, []byte(stub), namespace, artifacts.ReportFilename(i)); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to save stub report")
	}

	data, err := json.MarshalIndent(urlData{
		URL:     result.URL,
		Success: false,
		Error:   result.Error,
	}, "", "  ")
	if err == nil {
		if _, err := c.store.Save(ctx, data, namespace, artifacts.DataFilename(i)); err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to save stub data")
		}
	}
}

// urlData is the structured artifact written alongside each report
type urlData struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Links      []string  `json:"links,omitempty"`
	FetchedAt  time.Time `json:"fetched_at,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// renderReport formats a crawl result as a standalone markdown document
func renderReport(r *models.CrawlResult) string {
	title := r.Title
	if title == "" {
		title = r.URL
	}
	return fmt.Sprintf("# %s\n\n- URL: %s\n- Fetched: %s\n\n---\n\n%s\n",
		title, r.URL, r.FetchedAt.Format(time.RFC3339), r.Markdown)
}
