package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/batch"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// ProcessImageHandler extracts text from an uploaded image with the OCR
// engine and renders a markdown report plus an HTML version of it under the
// reports/ namespace.
type ProcessImageHandler struct {
	jobStore interfaces.JobStore
	store    interfaces.ArtifactStore
	engine   interfaces.OCREngine
	logger   arbor.ILogger
}

// NewProcessImageHandler creates the image-processing task handler
func NewProcessImageHandler(jobStore interfaces.JobStore, store interfaces.ArtifactStore, engine interfaces.OCREngine, logger arbor.ILogger) *ProcessImageHandler {
	return &ProcessImageHandler{
		jobStore: jobStore,
		store:    store,
		engine:   engine,
		logger:   logger,
	}
}

func (h *ProcessImageHandler) Type() string {
	return models.TaskTypeProcessImage
}

func (h *ProcessImageHandler) Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error) {
	started := time.Now()

	job, err := h.jobStore.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	filePath, _ := job.Metadata["file_path"].(string)
	if filePath == "" {
		return nil, Permanent(fmt.Errorf("job has no file_path in metadata"))
	}
	mimeType, _ := job.Metadata["mime_type"].(string)

	image, err := h.store.Get(ctx, filePath)
	if err != nil {
		if errors.Is(err, interfaces.ErrArtifactNotFound) {
			return nil, Permanent(fmt.Errorf("image artifact missing: %s", filePath))
		}
		return nil, err
	}

	text, err := h.engine.ExtractText(ctx, image, mimeType)
	if err != nil {
		if errors.Is(err, interfaces.ErrOCRUnavailable) {
			return nil, Permanent(err)
		}
		// API errors are usually transient (rate limits, timeouts)
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	report := renderImageReport(job, text)
	reportURL, err := h.store.Save(ctx, []byte(report), "reports", jobID+".md")
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	html, err := batch.RenderHTML(report)
	if err != nil {
		return nil, fmt.Errorf("failed to render report HTML: %w", err)
	}
	htmlURL, err := h.store.Save(ctx, html, "reports", jobID+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to save report HTML: %w", err)
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("file_path", filePath).
		Int("text_chars", len(text)).
		Msg("Image processed")

	return jsonMap(struct {
		Text           string  `json:"text"`
		ReportURL      string  `json:"report_url"`
		HTMLURL        string  `json:"html_url"`
		Characters     int     `json:"characters"`
		ProcessingTime float64 `json:"processing_time"`
	}{
		Text:           text,
		ReportURL:      reportURL,
		HTMLURL:        htmlURL,
		Characters:     len(text),
		ProcessingTime: time.Since(started).Seconds(),
	})
}

// renderImageReport formats the extracted text as a markdown document headed
// by the caller-supplied title or the original filename
func renderImageReport(job *models.Job, text string) string {
	title, _ := job.Metadata["title"].(string)
	if title == "" {
		title, _ = job.Metadata["filename"].(string)
	}
	if title == "" {
		title = "Extracted Text"
	}
	return fmt.Sprintf("# %s\n\n- Job: %s\n- Extracted: %s\n\n---\n\n%s\n",
		title, job.ID, time.Now().UTC().Format(time.RFC3339), text)
}
