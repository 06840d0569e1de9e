package interfaces

import (
	"context"

	"github.com/ternarybob/wraith/internal/models"
)

// Crawler renders a page and extracts its content. The chromedp-backed
// implementation lives in services/crawler; tests substitute fakes.
type Crawler interface {
	// Crawl fetches a single URL with the given options. A non-nil error
	// means the page could not be rendered; partial results are not
	// returned alongside errors.
	Crawl(ctx context.Context, url string, opts *models.CrawlOptions) (*models.CrawlResult, error)

	Close() error
}
