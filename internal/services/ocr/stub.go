package ocr

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
)

// StubEngine is the engine used when no vision provider is configured.
// Every extraction fails with ErrOCRUnavailable, which image-processing
// handlers report as a job failure without retrying.
type StubEngine struct{}

func (StubEngine) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", interfaces.ErrOCRUnavailable
}

// NewEngine selects the OCR engine: Anthropic vision when an API key is
// configured, the stub otherwise.
func NewEngine(config *common.OCRConfig, logger arbor.ILogger) interfaces.OCREngine {
	if config.APIKey == "" {
		logger.Warn().Msg("No OCR API key configured, image text extraction disabled")
		return StubEngine{}
	}

	engine, err := NewAnthropicEngine(config, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize OCR engine, image text extraction disabled")
		return StubEngine{}
	}
	return engine
}
