package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
)

const extractPrompt = "Extract all text visible in this image. Return only the extracted text, preserving line breaks and reading order. If the image contains no text, return an empty response."

// AnthropicEngine extracts text from images with Claude vision
type AnthropicEngine struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewAnthropicEngine creates a vision-backed OCR engine
func NewAnthropicEngine(config *common.OCRConfig, logger arbor.ILogger) (interfaces.OCREngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for OCR (set via ANTHROPIC_API_KEY, WRAITH_OCR_API_KEY, or ocr.api_key in config)")
	}

	model := config.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", model).
		Int("max_tokens", maxTokens).
		Dur("timeout", timeout).
		Msg("Anthropic OCR engine initialized")

	return &AnthropicEngine{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (e *AnthropicEngine) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()

	encoded := base64.StdEncoding.EncodeToString(image)

	resp, err := e.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: int64(e.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(extractPrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())

	e.logger.Debug().
		Int("image_bytes", len(image)).
		Int("text_chars", len(text)).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Msg("Image text extracted")

	return text, nil
}
