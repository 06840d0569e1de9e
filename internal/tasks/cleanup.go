package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// CleanupHandler sweeps settled jobs past the retention window: artifacts
// are deleted and the job record moves to cleaned_up with the list of files
// removed, keeping the audit trail without the bulk.
//
// The window comes from the task payload's days_to_keep, falling back to the
// configured retention age.
type CleanupHandler struct {
	jobStore interfaces.JobStore
	store    interfaces.ArtifactStore
	maxAge   time.Duration
	logger   arbor.ILogger
}

// NewCleanupHandler creates the cleanup task handler
func NewCleanupHandler(jobStore interfaces.JobStore, store interfaces.ArtifactStore, maxAge time.Duration, logger arbor.ILogger) *CleanupHandler {
	return &CleanupHandler{
		jobStore: jobStore,
		store:    store,
		maxAge:   maxAge,
		logger:   logger,
	}
}

func (h *CleanupHandler) Type() string {
	return models.TaskTypeCleanup
}

func (h *CleanupHandler) Execute(ctx context.Context, jobID string, payload map[string]interface{}) (map[string]interface{}, error) {
	maxAge := h.maxAge
	if days, ok := payload["days_to_keep"].(float64); ok && days >= 0 {
		maxAge = time.Duration(days) * 24 * time.Hour
	}

	jobs, err := h.jobStore.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	deleted := 0
	failed := 0
	filesDeleted := 0

	for _, job := range jobs {
		if job.ID == jobID {
			continue // The cleanup job itself
		}
		if !job.IsTerminal() || job.Status == models.JobStatusCleanedUp {
			continue
		}
		if job.CreatedAt.After(cutoff) {
			continue
		}

		removed := h.deleteArtifacts(ctx, job)

		status := models.JobStatusCleanedUp
		now := time.Now().UTC()
		if err := h.jobStore.Update(ctx, job.ID, &models.JobPatch{
			Status:      &status,
			CleanedUpAt: &now,
			Results:     map[string]interface{}{"files_deleted": removed},
		}); err != nil {
			h.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job cleaned up")
			failed++
			continue
		}
		deleted++
		filesDeleted += len(removed)
	}

	h.logger.Info().
		Int("deleted_jobs", deleted).
		Int("files_deleted", filesDeleted).
		Int("failed", failed).
		Msg("Cleanup sweep finished")

	return jsonMap(struct {
		DeletedJobs  int `json:"deleted_jobs"`
		FilesDeleted int `json:"files_deleted"`
		Failed       int `json:"failed"`
	}{
		DeletedJobs:  deleted,
		FilesDeleted: filesDeleted,
		Failed:       failed,
	})
}

// deleteArtifacts removes every artifact path the job's record references
// and returns the paths actually removed
func (h *CleanupHandler) deleteArtifacts(ctx context.Context, job *models.Job) []string {
	removed := make([]string, 0, 4)
	for _, p := range artifactPaths(job) {
		ok, err := h.store.Delete(ctx, p)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", job.ID).Str("path", p).Msg("Failed to delete artifact")
			continue
		}
		if ok {
			removed = append(removed, p)
		}
	}
	return removed
}

// artifactPaths collects the logical paths recorded in job metadata and
// results. Only paths the record names are touched; the store has no listing
// that spans backends.
func artifactPaths(job *models.Job) []string {
	var paths []string

	add := func(v interface{}) {
		if s, ok := v.(string); ok && s != "" {
			paths = append(paths, s)
		}
	}

	add(job.Metadata["file_path"])

	if job.Results == nil {
		return paths
	}
	add(job.Results["report_url"])
	add(job.Results["html_url"])
	add(job.Results["collated_url"])
	add(job.Results["markdown_url"])
	add(job.Results["json_url"])
	add(job.Results["screenshot_url"])

	if perURL, ok := job.Results["per_url"].([]interface{}); ok {
		for _, entry := range perURL {
			if m, ok := entry.(map[string]interface{}); ok {
				add(m["markdown_url"])
				add(m["json_url"])
				add(m["screenshot_url"])
			}
		}
	}

	// The HTML rendering rides alongside collated.md
	if s, ok := job.Results["collated_url"].(string); ok && strings.HasSuffix(s, "collated.md") {
		paths = append(paths, strings.TrimSuffix(s, "collated.md")+"collated.html")
	}

	return paths
}
