package models

import "time"

// CrawlResult is the rendered content of a single page
type CrawlResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`

	// HTML is the rendered outer HTML; Markdown is its converted form
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`

	// Screenshot is a full-page PNG when requested
	Screenshot []byte `json:"-"`

	// Links are the absolute hrefs found on the page
	Links []string `json:"links,omitempty"`

	StatusCode int           `json:"status_code,omitempty"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration_ms"`
}
