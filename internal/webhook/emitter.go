package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/models"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when a signing
// secret is configured.
const SignatureHeader = "X-Wraith-Signature"

// Payload is the completion notification body. Stats and Results are lifted
// out of the job's results map when the handler recorded them.
type Payload struct {
	JobID       string           `json:"job_id"`
	JobType     models.JobType   `json:"job_type"`
	Status      models.JobStatus `json:"status"`
	Stats       interface{}      `json:"stats,omitempty"`
	Results     interface{}      `json:"results,omitempty"`
	Error       string           `json:"error,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Emitter delivers job completion notifications over HTTP POST.
//
// Delivery is best-effort: one attempt, no retry, failures logged and
// swallowed. A broken webhook endpoint must never change job state.
type Emitter struct {
	client    *http.Client
	userAgent string
	secret    string
	logger    arbor.ILogger
}

// NewEmitter creates a webhook emitter
func NewEmitter(config *common.WebhookConfig, logger arbor.ILogger) *Emitter {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		client:    &http.Client{Timeout: timeout},
		userAgent: config.UserAgent,
		secret:    config.SigningSecret,
		logger:    logger,
	}
}

// Emit sends the job's terminal state to the configured webhook URL.
// A nil webhook config is a no-op.
func (e *Emitter) Emit(ctx context.Context, cfg *models.WebhookConfig, job *models.Job) {
	if cfg == nil || cfg.URL == "" {
		return
	}

	payload := Payload{
		JobID:       job.ID,
		JobType:     job.Type,
		Status:      job.Status,
		Error:       job.Error,
		CompletedAt: job.CompletedAt,
		Timestamp:   time.Now().UTC(),
	}
	if job.Results != nil {
		payload.Stats = job.Results["stats"]
		if perURL, ok := job.Results["per_url"]; ok {
			payload.Results = perURL
		} else {
			payload.Results = job.Results
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to encode webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", cfg.URL).Msg("Failed to build webhook request")
		return
	}

	// Caller headers first; standard headers win on collision
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if e.secret != "" {
		req.Header.Set(SignatureHeader, Sign(e.secret, body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", cfg.URL).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		e.logger.Info().Str("job_id", job.ID).Str("url", cfg.URL).Int("status", resp.StatusCode).Msg("Webhook delivered")
	} else {
		e.logger.Warn().Str("job_id", job.ID).Str("url", cfg.URL).Int("status", resp.StatusCode).Msg("Webhook rejected")
	}
}

// Sign computes the signature header value for a body and secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
