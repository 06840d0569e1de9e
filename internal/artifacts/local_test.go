package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
)

func testStore(t *testing.T) *LocalStore {
	t.Helper()

	store, err := NewLocalStore(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	return store
}

func TestLocalStoreSaveAndGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	path, err := store.Save(ctx, []byte("# Report"), BatchNamespace("job-1"), ReportFilename(0))
	require.NoError(t, err)
	assert.Equal(t, "batch/job-1/report_0.md", path)

	data, err := store.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "# Report", string(data))
}

func TestLocalStoreSaveOverwrites(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, []byte("first"), "ns", "file.txt")
	require.NoError(t, err)
	_, err = store.Save(ctx, []byte("second"), "ns", "file.txt")
	require.NoError(t, err)

	data, err := store.Get(ctx, "ns/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalStoreGetNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.Get(context.Background(), "batch/missing/report_0.md")
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)
}

func TestLocalStoreDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	path, err := store.Save(ctx, []byte("x"), "ns", "file.txt")
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, path)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, path)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.Get(ctx, path)
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)
}

func TestLocalStoreExists(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "ns/file.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Save(ctx, []byte("x"), "ns", "file.txt")
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "ns/file.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "../outside")
	assert.Error(t, err)

	_, err = store.Get(ctx, "/etc/passwd")
	assert.Error(t, err)

	_, err = store.Save(ctx, []byte("x"), "..", "escape.txt")
	assert.Error(t, err)
}

func TestPredictedPaths(t *testing.T) {
	assert.Equal(t, "batch/j1/report_2.md", PredictedReportPath("j1", 2))
	assert.Equal(t, "batch/j1/data_2.json", PredictedDataPath("j1", 2))
	assert.Equal(t, "batch/j1/screenshot_2.png", PredictedScreenshotPath("j1", 2))
	assert.Equal(t, "batch/j1/collated.md", PredictedCollatedPath("j1"))
}
