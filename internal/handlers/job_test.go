package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

func testJobHandler(t *testing.T) (*JobHandler, interfaces.JobStore) {
	t.Helper()

	logger := arbor.NewLogger()
	jobStore := memory.NewJobStore(logger)
	return NewJobHandler(jobStore, logger), jobStore
}

func TestGetJob(t *testing.T) {
	handler, jobStore := testJobHandler(t)

	jobID, err := jobStore.Create(context.Background(), models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	handler.JobRoutesHandler(rec, req)

	// The status endpoint returns the job record itself, no envelope
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, jobID, body["job_id"])
	assert.Equal(t, "batch-crawl", body["job_type"])
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["created_at"])
}

func TestGetJobNotFound(t *testing.T) {
	handler, _ := testJobHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()
	handler.JobRoutesHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Job missing not found")
}

func TestDeleteJob(t *testing.T) {
	handler, jobStore := testJobHandler(t)
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	handler.JobRoutesHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDeleted, job.Status)
	require.NotNil(t, job.DeletedAt)
}

func TestDeleteJobAlreadyCompleted(t *testing.T) {
	handler, jobStore := testJobHandler(t)
	ctx := context.Background()

	jobID, err := jobStore.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, jobID, models.CompletedPatch(nil)))

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	handler.JobRoutesHandler(rec, req)

	// The request succeeds but the terminal status latched
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := jobStore.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestJobRoutesRejectsSubpaths(t *testing.T) {
	handler, _ := testJobHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/a/b", nil)
	rec := httptest.NewRecorder()
	handler.JobRoutesHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	handler, jobStore := testJobHandler(t)
	ctx := context.Background()

	id1, err := jobStore.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	_, err = jobStore.Create(ctx, models.JobTypeSingleCrawl, nil)
	require.NoError(t, err)
	require.NoError(t, jobStore.Update(ctx, id1, models.CompletedPatch(nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])

	// Status filter
	req = httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil)
	rec = httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	// Limit
	req = httptest.NewRequest(http.MethodGet, "/api/jobs?limit=1", nil)
	rec = httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)

	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}
