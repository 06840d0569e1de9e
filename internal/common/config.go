package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Artifacts   ArtifactsConfig `toml:"artifacts"`
	Cloud       CloudConfig     `toml:"cloud"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	OCR         OCRConfig       `toml:"ocr"`
	Webhook     WebhookConfig   `toml:"webhook"`
	Cleanup     CleanupConfig   `toml:"cleanup"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g., "1s" - how often the dispatcher polls for ready tasks
	BatchSize    int    `toml:"batch_size"`    // Max tasks pulled per poll
	MaxRetries   int    `toml:"max_retries"`   // Delivery attempts before a task is failed
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ArtifactsConfig selects and configures the artifact backend
type ArtifactsConfig struct {
	Backend string   `toml:"backend"` // "local" or "s3" (default: "local", "s3" when running in cloud)
	Local   LocalFS  `toml:"local"`
	S3      S3Config `toml:"s3"`
}

type LocalFS struct {
	Dir string `toml:"dir"` // Root directory for artifact files
}

// S3Config covers AWS S3 and S3-compatible endpoints (MinIO, R2)
type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`       // Custom endpoint for S3-compatible stores
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"` // Required for MinIO and most custom endpoints
}

// CloudConfig carries the managed-backend settings used when the process
// runs on Cloud Run. RunningInCloud is resolved once at load time from the
// RUNNING_IN_CLOUD environment variable and never re-read.
type CloudConfig struct {
	RunningInCloud bool   `toml:"-"`
	ServiceURL     string `toml:"service_url"` // Public base URL task pushes are addressed to
	Project        string `toml:"project"`     // GCP project ID
	Location       string `toml:"location"`    // Cloud Tasks queue location, e.g. "us-central1"
	QueueID        string `toml:"queue_id"`    // Cloud Tasks queue name
	ServiceAccount string `toml:"service_account"` // Email used for OIDC task push tokens
}

// CrawlerConfig tunes the chromedp-backed page fetcher
type CrawlerConfig struct {
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout"` // Per-page fetch timeout
	WaitTime       time.Duration `toml:"wait_time"`       // Default wait after navigation for script-rendered pages
	RateLimit      time.Duration `toml:"rate_limit"`      // Minimum spacing between page fetches
	Headless       bool          `toml:"headless"`
}

// OCRConfig contains Anthropic vision configuration for image text extraction
type OCRConfig struct {
	APIKey    string `toml:"api_key"`    // Anthropic API key (ANTHROPIC_API_KEY also honored)
	Model     string `toml:"model"`      // Vision model (default: "claude-haiku-3-5-20241022")
	MaxTokens int    `toml:"max_tokens"` // Maximum tokens in response
	Timeout   string `toml:"timeout"`    // Operation timeout as duration string
}

// WebhookConfig tunes outbound completion notifications
type WebhookConfig struct {
	Timeout       time.Duration `toml:"timeout"`        // Per-delivery HTTP timeout
	UserAgent     string        `toml:"user_agent"`
	SigningSecret string        `toml:"signing_secret"` // Enables the HMAC signature header when set
}

// CleanupConfig controls the periodic stale-job sweep
type CleanupConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	MaxAge   string `toml:"max_age"`  // Jobs older than this are swept, e.g. "168h"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in wraith.toml; technical parameters
// are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval: "1s",
			BatchSize:    5,
			MaxRetries:   3,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Artifacts: ArtifactsConfig{
			Backend: "local",
			Local: LocalFS{
				Dir: "./data/artifacts",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Cloud: CloudConfig{
			Location: "us-central1",
			QueueID:  "wraith-tasks",
		},
		Crawler: CrawlerConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 60 * time.Second,
			WaitTime:       3 * time.Second,
			RateLimit:      500 * time.Millisecond,
			Headless:       true,
		},
		OCR: OCRConfig{
			Model:     "claude-haiku-3-5-20241022",
			MaxTokens: 4096,
			Timeout:   "2m",
		},
		Webhook: WebhookConfig{
			Timeout:   10 * time.Second,
			UserAgent: "wraith-webhook/1.0",
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Schedule: "0 0 * * *", // Daily at midnight
			MaxAge:   "720h",      // 30 days
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
// An empty path skips the file stage and uses defaults plus environment.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: WRAITH_ENV, fallback: GO_ENV)
	if env := os.Getenv("WRAITH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Cloud probe. Read once here; everything downstream asks the config.
	if cloud := os.Getenv("RUNNING_IN_CLOUD"); cloud != "" {
		if c, err := strconv.ParseBool(cloud); err == nil {
			config.Cloud.RunningInCloud = c
		} else {
			config.Cloud.RunningInCloud = strings.EqualFold(cloud, "yes")
		}
	}
	if serviceURL := os.Getenv("WRAITH_SERVICE_URL"); serviceURL != "" {
		config.Cloud.ServiceURL = serviceURL
	}
	if project := os.Getenv("WRAITH_GCP_PROJECT"); project != "" {
		config.Cloud.Project = project
	} else if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" {
		config.Cloud.Project = project
	}
	if location := os.Getenv("WRAITH_GCP_LOCATION"); location != "" {
		config.Cloud.Location = location
	}
	if queueID := os.Getenv("WRAITH_GCP_QUEUE"); queueID != "" {
		config.Cloud.QueueID = queueID
	}
	if serviceAccount := os.Getenv("WRAITH_SERVICE_ACCOUNT"); serviceAccount != "" {
		config.Cloud.ServiceAccount = serviceAccount
	}

	// Server configuration
	if port := os.Getenv("WRAITH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	} else if port := os.Getenv("PORT"); port != "" {
		// Cloud Run injects PORT
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("WRAITH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("WRAITH_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if batchSize := os.Getenv("WRAITH_QUEUE_BATCH_SIZE"); batchSize != "" {
		if b, err := strconv.Atoi(batchSize); err == nil {
			config.Queue.BatchSize = b
		}
	}
	if maxRetries := os.Getenv("MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Queue.MaxRetries = mr
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("WRAITH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Artifacts configuration
	if backend := os.Getenv("WRAITH_ARTIFACTS_BACKEND"); backend != "" {
		config.Artifacts.Backend = backend
	}
	if dir := os.Getenv("WRAITH_ARTIFACTS_DIR"); dir != "" {
		config.Artifacts.Local.Dir = dir
	}
	if bucket := os.Getenv("WRAITH_S3_BUCKET"); bucket != "" {
		config.Artifacts.S3.Bucket = bucket
	}
	if region := os.Getenv("WRAITH_S3_REGION"); region != "" {
		config.Artifacts.S3.Region = region
	}
	if endpoint := os.Getenv("WRAITH_S3_ENDPOINT"); endpoint != "" {
		config.Artifacts.S3.Endpoint = endpoint
	}
	if accessKey := os.Getenv("WRAITH_S3_ACCESS_KEY"); accessKey != "" {
		config.Artifacts.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("WRAITH_S3_SECRET_KEY"); secretKey != "" {
		config.Artifacts.S3.SecretKey = secretKey
	}
	if pathStyle := os.Getenv("WRAITH_S3_PATH_STYLE"); pathStyle != "" {
		if ps, err := strconv.ParseBool(pathStyle); err == nil {
			config.Artifacts.S3.UsePathStyle = ps
		}
	}

	// Crawler configuration
	if userAgent := os.Getenv("WRAITH_CRAWLER_USER_AGENT"); userAgent != "" {
		config.Crawler.UserAgent = userAgent
	}
	if requestTimeout := os.Getenv("WRAITH_CRAWLER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if rt, err := time.ParseDuration(requestTimeout); err == nil {
			config.Crawler.RequestTimeout = rt
		}
	}
	if waitTime := os.Getenv("WRAITH_CRAWLER_WAIT_TIME"); waitTime != "" {
		if wt, err := time.ParseDuration(waitTime); err == nil {
			config.Crawler.WaitTime = wt
		}
	}
	if rateLimit := os.Getenv("WRAITH_CRAWLER_RATE_LIMIT"); rateLimit != "" {
		if rl, err := time.ParseDuration(rateLimit); err == nil {
			config.Crawler.RateLimit = rl
		}
	}
	if headless := os.Getenv("WRAITH_CRAWLER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Crawler.Headless = h
		}
	}

	// OCR configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.OCR.APIKey = apiKey
	}
	if apiKey := os.Getenv("WRAITH_OCR_API_KEY"); apiKey != "" {
		config.OCR.APIKey = apiKey // WRAITH_ prefix takes priority
	}
	if model := os.Getenv("WRAITH_OCR_MODEL"); model != "" {
		config.OCR.Model = model
	}
	if maxTokens := os.Getenv("WRAITH_OCR_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.OCR.MaxTokens = mt
		}
	}

	// Webhook configuration
	if timeout := os.Getenv("WRAITH_WEBHOOK_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Webhook.Timeout = t
		}
	}
	if secret := os.Getenv("WRAITH_WEBHOOK_SECRET"); secret != "" {
		config.Webhook.SigningSecret = secret
	}

	// Cleanup configuration
	if enabled := os.Getenv("WRAITH_CLEANUP_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Cleanup.Enabled = e
		}
	}
	if schedule := os.Getenv("WRAITH_CLEANUP_SCHEDULE"); schedule != "" {
		config.Cleanup.Schedule = schedule
	}
	if maxAge := os.Getenv("WRAITH_CLEANUP_MAX_AGE"); maxAge != "" {
		config.Cleanup.MaxAge = maxAge
	}

	// Logging configuration
	if level := os.Getenv("WRAITH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("WRAITH_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsCloud reports whether the process runs against managed cloud backends
func (c *Config) IsCloud() bool {
	return c.Cloud.RunningInCloud
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// PollInterval parses the queue poll interval, falling back to one second
func (c *Config) PollInterval() time.Duration {
	if d, err := time.ParseDuration(c.Queue.PollInterval); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// CleanupMaxAge parses the cleanup age threshold, falling back to 30 days
func (c *Config) CleanupMaxAge() time.Duration {
	if d, err := time.ParseDuration(c.Cleanup.MaxAge); err == nil && d > 0 {
		return d
	}
	return 720 * time.Hour
}
