package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/artifacts"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

// A negative max age puts the cutoff in the future, making every settled job
// eligible without having to age records in the store.
const sweepEverything = -time.Minute

func testCleanup(t *testing.T, maxAge time.Duration) (*CleanupHandler, interfaces.JobStore, *artifacts.LocalStore) {
	t.Helper()

	logger := arbor.NewLogger()
	jobStore := memory.NewJobStore(logger)
	store, err := artifacts.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)
	return NewCleanupHandler(jobStore, store, maxAge, logger), jobStore, store
}

func TestCleanupSweepsSettledJobs(t *testing.T) {
	handler, jobStore, store := testCleanup(t, sweepEverything)
	ctx := context.Background()

	// Completed job with an artifact on record
	doneJob, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	markdownURL, err := store.Save(ctx, []byte("# r"), artifacts.BatchNamespace(doneJob), artifacts.ReportFilename(0))
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, doneJob, models.CompletedPatch(map[string]interface{}{
		"markdown_url": markdownURL,
	})))

	// Running job stays regardless of age
	runningJob, err := jobStore.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, runningJob, models.ProcessingPatch()))

	sweepJob, err := jobStore.Create(ctx, models.JobTypeCleanup, nil)
	require.NoError(t, err)

	results, err := handler.Execute(ctx, sweepJob, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), results["deleted_jobs"])
	assert.Equal(t, float64(1), results["files_deleted"])
	assert.Equal(t, float64(0), results["failed"])

	job, err := jobStore.Get(ctx, doneJob)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCleanedUp, job.Status)
	require.NotNil(t, job.CleanedUpAt)

	// The removed paths are recorded on the swept job
	filesDeleted, ok := job.Results["files_deleted"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{markdownURL}, filesDeleted)

	exists, err := store.Exists(ctx, markdownURL)
	require.NoError(t, err)
	assert.False(t, exists)

	job, err = jobStore.Get(ctx, runningJob)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)

	// The sweep job itself is never swept
	job, err = jobStore.Get(ctx, sweepJob)
	require.NoError(t, err)
	assert.NotEqual(t, models.JobStatusCleanedUp, job.Status)
}

func TestCleanupRetainsFreshJobs(t *testing.T) {
	handler, jobStore, _ := testCleanup(t, time.Hour)
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, jobID, models.CompletedPatch(nil)))

	results, err := handler.Execute(ctx, "sweep-job", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), results["deleted_jobs"])

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestCleanupDaysToKeepPayload(t *testing.T) {
	// The payload's days_to_keep=0 overrides a generous configured
	// retention and targets everything created before now
	handler, jobStore, _ := testCleanup(t, 24*365*time.Hour)
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, jobID, models.CompletedPatch(nil)))

	results, err := handler.Execute(ctx, "sweep-job", map[string]interface{}{"days_to_keep": float64(0)})
	require.NoError(t, err)
	assert.Equal(t, float64(1), results["deleted_jobs"])

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCleanedUp, job.Status)
}

func TestCleanupSkipsAlreadyCleaned(t *testing.T) {
	handler, jobStore, _ := testCleanup(t, sweepEverything)
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, jobID, models.CompletedPatch(nil)))
	status := models.JobStatusCleanedUp
	now := time.Now().UTC()
	require.NoError(t, jobStore.Update(ctx, jobID, &models.JobPatch{Status: &status, CleanedUpAt: &now}))

	results, err := handler.Execute(ctx, "sweep-job", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), results["deleted_jobs"])
}

func TestArtifactPathsCollection(t *testing.T) {
	job := models.NewJob(models.JobTypeBatchCrawl, map[string]interface{}{
		"file_path": "uploads/j/image.png",
	})
	job.Results = map[string]interface{}{
		"collated_url": "batch/j/collated.md",
		"per_url": []interface{}{
			map[string]interface{}{
				"markdown_url":   "batch/j/report_0.md",
				"json_url":       "batch/j/data_0.json",
				"screenshot_url": "batch/j/screenshot_0.png",
			},
		},
	}

	paths := artifactPaths(job)
	assert.ElementsMatch(t, []string{
		"uploads/j/image.png",
		"batch/j/collated.md",
		"batch/j/collated.html",
		"batch/j/report_0.md",
		"batch/j/data_0.json",
		"batch/j/screenshot_0.png",
	}, paths)
}

func TestArtifactPathsEmptyJob(t *testing.T) {
	job := models.NewJob(models.JobTypeCleanup, nil)
	assert.Empty(t, artifactPaths(job))
}
