package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/wraith/internal/artifacts"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// writeCollated builds the combined markdown document from the per-URL
// reports already in the artifact store, plus an HTML rendering of it.
// Failed URLs are skipped; sections follow input order.
func (c *Coordinator) writeCollated(ctx context.Context, jobID string, opts *models.CollateOptions, results []models.URLResult, stats models.BatchStats) (string, error) {
	title := "Batch Crawl Report"
	addTOC := false
	addSourceHeaders := false
	if opts != nil {
		if opts.Title != "" {
			title = opts.Title
		}
		addTOC = opts.AddTOC
		addSourceHeaders = opts.AddSourceHeaders
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Job: %s\n", jobID)
	fmt.Fprintf(&sb, "- Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- URLs: %d total, %d successful, %d failed\n\n", stats.TotalURLs, stats.Successful, stats.Failed)

	if addTOC {
		sb.WriteString("## Contents\n\n")
		for i := range results {
			r := &results[i]
			if r.Status != models.URLStatusCompleted {
				continue
			}
			sectionTitle := r.Title
			if sectionTitle == "" {
				sectionTitle = r.URL
			}
			fmt.Fprintf(&sb, "%d. %s (%s)\n", r.Index+1, sectionTitle, r.URL)
		}
		sb.WriteString("\n")
	}

	for i := range results {
		r := &results[i]
		if r.Status != models.URLStatusCompleted {
			continue
		}

		sb.WriteString("\n---\n\n")
		if addSourceHeaders {
			fmt.Fprintf(&sb, "## Source: %s\n\n", r.URL)
		}

		report, err := c.store.Get(ctx, r.MarkdownURL)
		if err != nil {
			if errors.Is(err, interfaces.ErrArtifactNotFound) {
				fmt.Fprintf(&sb, "Report for %s unavailable.\n", r.URL)
				continue
			}
			return "", fmt.Errorf("failed to read report %s: %w", r.MarkdownURL, err)
		}
		sb.Write(report)
		sb.WriteString("\n")
	}

	collated := sb.String()
	namespace := artifacts.BatchNamespace(jobID)

	path, err := c.store.Save(ctx, []byte(collated), namespace, artifacts.CollatedFilename)
	if err != nil {
		return "", fmt.Errorf("failed to save collated report: %w", err)
	}

	// HTML rendering rides along for clients that want a viewable document
	if html, err := RenderHTML(collated); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to render collated HTML")
	} else {
		if _, err := c.store.Save(ctx, html, namespace, "collated.html"); err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to save collated HTML")
		}
	}

	return path, nil
}

// RenderHTML converts a markdown document into a standalone HTML document
func RenderHTML(markdown string) ([]byte, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body>\n")
	if err := gm.Convert([]byte(markdown), &buf); err != nil {
		return nil, err
	}
	buf.WriteString("\n</body>\n</html>\n")
	return buf.Bytes(), nil
}
