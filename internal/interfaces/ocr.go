package interfaces

import "context"

// OCREngine extracts text from an image. The Anthropic vision-backed
// implementation lives in services/ocr; a stub engine returns
// ErrOCRUnavailable when no provider is configured.
type OCREngine interface {
	// ExtractText returns the text content of the image bytes.
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
}
