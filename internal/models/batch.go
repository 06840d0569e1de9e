package models

import (
	"encoding/json"
	"fmt"
)

// MaxBatchURLs caps a single batch so one submission cannot monopolize the
// dispatcher
const MaxBatchURLs = 50

// Per-URL outcome states inside a batch. "processing" appears only in the
// stub results returned before an async batch settles.
const (
	URLStatusProcessing = "processing"
	URLStatusCompleted  = "completed"
	URLStatusFailed     = "failed"
)

// BatchRequest is the batch shape accepted by POST /api/markdown. Crawl
// options are inlined at the top level and forwarded to the crawler as-is.
type BatchRequest struct {
	URLs           []string        `json:"urls" validate:"required,min=1,max=50,dive,required,url"`
	Async          *bool           `json:"async,omitempty"`
	Collate        bool            `json:"collate,omitempty"`
	CollateOptions *CollateOptions `json:"collate_options,omitempty"`
	Webhook        *WebhookConfig  `json:"webhook,omitempty" validate:"omitempty"`

	CrawlOptions
}

// IsAsync reports the submission mode; async is the default
func (r *BatchRequest) IsAsync() bool {
	return r.Async == nil || *r.Async
}

// CrawlOptions tunes a single page fetch
type CrawlOptions struct {
	// WaitSeconds pauses after navigation for script-rendered pages
	WaitSeconds int `json:"wait_seconds,omitempty" validate:"omitempty,min=0,max=30"`

	// Screenshot captures a full-page PNG alongside the markdown report
	Screenshot bool `json:"screenshot,omitempty"`

	// TimeoutSeconds bounds the whole fetch; 0 uses the service default
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"omitempty,min=0,max=300"`

	// UserAgent overrides the browser user agent when non-empty
	UserAgent string `json:"user_agent,omitempty"`
}

// CollateOptions controls the combined markdown document built after all
// URLs in a batch have settled
type CollateOptions struct {
	// Title heads the collated document; defaults to "Batch Crawl Report"
	Title string `json:"title,omitempty"`

	// AddTOC inserts a table of contents linking each section
	AddTOC bool `json:"add_toc,omitempty"`

	// AddSourceHeaders prefixes each section with its source URL
	AddSourceHeaders bool `json:"add_source_headers,omitempty"`
}

// WebhookConfig is the completion callback for a job. Caller headers are
// merged into the request; Content-Type and the signature header always win.
type WebhookConfig struct {
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// URLResult records the outcome of one URL within a batch
type URLResult struct {
	URL    string `json:"url"`
	Index  int    `json:"index"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	// MarkdownURL and JSONURL are always populated, success or not; failed
	// URLs get stub artifacts at the predicted paths.
	MarkdownURL   string `json:"markdown_url"`
	JSONURL       string `json:"json_url"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`

	// Title feeds the collated table of contents; not part of the wire shape
	Title string `json:"-"`
}

// BatchStats summarizes a settled batch
type BatchStats struct {
	TotalURLs  int `json:"total_urls"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ToMetadata flattens the request into a job metadata map
func (r *BatchRequest) ToMetadata() (map[string]interface{}, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode batch request: %w", err)
	}
	return metadata, nil
}

// WebhookFromMetadata extracts the webhook config from job metadata.
// Returns nil when the job has no webhook configured.
func WebhookFromMetadata(metadata map[string]interface{}) *WebhookConfig {
	raw, ok := metadata["webhook"]
	if !ok || raw == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var cfg WebhookConfig
	if err := json.Unmarshal(encoded, &cfg); err != nil || cfg.URL == "" {
		return nil
	}
	return &cfg
}

// BatchRequestFromMetadata rebuilds the request a batch-crawl job was
// created with. Metadata travels as map[string]interface{} through the job
// store, so the round trip goes back through JSON.
func BatchRequestFromMetadata(metadata map[string]interface{}) (*BatchRequest, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job metadata: %w", err)
	}
	var req BatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to decode batch request from metadata: %w", err)
	}
	return &req, nil
}
