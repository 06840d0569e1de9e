package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// ChromedpCrawler renders pages in headless Chrome. One browser allocator is
// shared across crawls; each Crawl gets a fresh tab. A rate limiter spaces
// page fetches so batch fan-out cannot hammer targets.
type ChromedpCrawler struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	limiter     *rate.Limiter
	config      *common.CrawlerConfig
	logger      arbor.ILogger
}

// NewChromedpCrawler creates a crawler backed by a shared headless browser
func NewChromedpCrawler(config *common.CrawlerConfig, logger arbor.ILogger) (interfaces.Crawler, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(config.RateLimit), 1)
	}

	logger.Info().
		Bool("headless", config.Headless).
		Str("rate_limit", config.RateLimit.String()).
		Msg("Chromedp crawler initialized")

	return &ChromedpCrawler{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		limiter:     limiter,
		config:      config,
		logger:      logger,
	}, nil
}

func (c *ChromedpCrawler) Crawl(ctx context.Context, pageURL string, opts *models.CrawlOptions) (*models.CrawlResult, error) {
	if opts == nil {
		opts = &models.CrawlOptions{}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	timeout := c.config.RequestTimeout
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}

	wait := c.config.WaitTime
	if opts.WaitSeconds > 0 {
		wait = time.Duration(opts.WaitSeconds) * time.Second
	}

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx)
	defer tabCancel()
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	// Propagate caller cancellation into the tab
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	start := time.Now()

	// Capture the document response status off the network events
	var statusCode int
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	var html, title string
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(wait),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	var screenshot []byte
	if opts.Screenshot {
		actions = append(actions, chromedp.FullScreenshot(&screenshot, 90))
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}

	markdown, err := convertToMarkdown(pageURL, html)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", pageURL).Msg("Markdown conversion failed, keeping HTML only")
		markdown = ""
	}

	links := extractLinks(pageURL, html)

	result := &models.CrawlResult{
		URL:        pageURL,
		Title:      title,
		HTML:       html,
		Markdown:   markdown,
		Screenshot: screenshot,
		Links:      links,
		StatusCode: statusCode,
		FetchedAt:  start.UTC(),
		Duration:   time.Since(start),
	}

	c.logger.Info().
		Str("url", pageURL).
		Str("title", title).
		Int("html_bytes", len(html)).
		Int("links", len(links)).
		Int64("duration_ms", result.Duration.Milliseconds()).
		Msg("Page crawled")

	return result, nil
}

func (c *ChromedpCrawler) Close() error {
	c.allocCancel()
	return nil
}

// convertToMarkdown converts rendered HTML to markdown, resolving relative
// links against the page URL
func convertToMarkdown(pageURL, html string) (string, error) {
	base := ""
	if u, err := url.Parse(pageURL); err == nil {
		base = u.Scheme + "://" + u.Host
	}

	converter := md.NewConverter(base, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert html to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// extractLinks collects absolute hrefs from the rendered document
func extractLinks(pageURL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		if s := abs.String(); !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	})

	return links
}
