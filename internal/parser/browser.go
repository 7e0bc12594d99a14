package parser

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"campovivo/landworker/internal/retry"
	apperrors "campovivo/landworker/pkg/errors"
)

// BrowserFetcher renders JS-heavy pages in headless Chrome and returns the
// resulting HTML. One exec allocator is shared; each fetch gets its own tab.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewBrowserFetcher starts a headless-Chrome allocator.
func NewBrowserFetcher(pageLoadTimeout time.Duration) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  pageLoadTimeout,
	}
}

// FetchHTML navigates to the URL and returns the rendered document.
func (b *BrowserFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, b.timeout)
	defer cancel()

	// Propagate caller cancellation into the browser task.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the allocator down.
func (b *BrowserFetcher) Close() {
	b.cancel()
}

// fetchWithBrowser fetches a URL through headless Chrome, with the same
// rate-limit blocking and retry policy as the plain-HTTP path. Navigation
// timeouts and renderer failures count as retryable network errors.
func (p *BaseParser) fetchWithBrowser(ctx context.Context, browser *BrowserFetcher, url string) (io.Reader, error) {
	if p.CacheSvc != nil && p.CacheKey != "" {
		if _, err := p.CacheSvc.Get(p.CacheKey); err == nil {
			return nil, apperrors.NewRateLimit(p.Source, p.BlockTime)
		}
	}

	return retry.DoValue(ctx, p.Harness, "render "+url, func(ctx context.Context) (io.Reader, error) {
		html, err := browser.FetchHTML(ctx, url)
		if err != nil {
			return nil, apperrors.NewNetwork(p.Source, "browser fetch failed", err)
		}
		return strings.NewReader(html), nil
	})
}
