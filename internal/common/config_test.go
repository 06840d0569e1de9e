package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 3, config.Queue.MaxRetries)
	assert.Equal(t, "local", config.Artifacts.Backend)
	assert.True(t, config.Cleanup.Enabled)
	assert.False(t, config.IsCloud())
	assert.False(t, config.IsProduction())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wraith.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"

[server]
port = 9090
host = "0.0.0.0"

[queue]
poll_interval = "250ms"
batch_size = 2

[cleanup]
enabled = false
max_age = "24h"
`), 0644))

	config, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.True(t, config.IsProduction())
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 250*time.Millisecond, config.PollInterval())
	assert.Equal(t, 2, config.Queue.BatchSize)
	assert.False(t, config.Cleanup.Enabled)
	assert.Equal(t, 24*time.Hour, config.CleanupMaxAge())

	// Untouched sections keep their defaults
	assert.Equal(t, 3, config.Queue.MaxRetries)
	assert.Equal(t, "local", config.Artifacts.Backend)
}

func TestLoadFromFileEmptyPathUsesDefaults(t *testing.T) {
	config, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RUNNING_IN_CLOUD", "true")
	t.Setenv("WRAITH_SERVICE_URL", "https://wraith.example.run.app")
	t.Setenv("WRAITH_GCP_PROJECT", "my-project")
	t.Setenv("PORT", "8081")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("WRAITH_S3_BUCKET", "artifacts")

	config, err := LoadFromFile("")
	require.NoError(t, err)

	assert.True(t, config.IsCloud())
	assert.Equal(t, "https://wraith.example.run.app", config.Cloud.ServiceURL)
	assert.Equal(t, "my-project", config.Cloud.Project)
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, 5, config.Queue.MaxRetries)
	assert.Equal(t, "artifacts", config.Artifacts.S3.Bucket)
}

func TestRunningInCloudAcceptsYes(t *testing.T) {
	t.Setenv("RUNNING_IN_CLOUD", "yes")

	config, err := LoadFromFile("")
	require.NoError(t, err)
	assert.True(t, config.IsCloud())
}

func TestRunningInCloudFalse(t *testing.T) {
	t.Setenv("RUNNING_IN_CLOUD", "false")

	config, err := LoadFromFile("")
	require.NoError(t, err)
	assert.False(t, config.IsCloud())
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9999, "127.0.0.1")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero values leave the config alone
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestPollIntervalFallback(t *testing.T) {
	config := NewDefaultConfig()
	config.Queue.PollInterval = "garbage"
	assert.Equal(t, time.Second, config.PollInterval())

	config.Queue.PollInterval = "-2s"
	assert.Equal(t, time.Second, config.PollInterval())
}

func TestCleanupMaxAgeFallback(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, 720*time.Hour, config.CleanupMaxAge())

	config.Cleanup.MaxAge = ""
	assert.Equal(t, 720*time.Hour, config.CleanupMaxAge())
}
