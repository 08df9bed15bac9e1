package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"hnsort/internal/collector"
	"hnsort/internal/logger"
)

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	ChromePath   string
	UserAgent    string
	WaitSelector string
	Timeout      time.Duration
	Headless     bool
}

// stealthScript hides the most common automation markers.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = { runtime: {} };
`

// BrowserFetcher drives headless Chrome through the listing.
type BrowserFetcher struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	parser      *Parser
	log         *logger.Logger
	next        string
	opts        BrowserOptions
	started     bool
}

var _ collector.PageFetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher starts a browser. Close must be called to stop it.
func NewBrowserFetcher(parent context.Context, startURL string, opts BrowserOptions, log *logger.Logger) (*BrowserFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	if opts.WaitSelector == "" {
		opts.WaitSelector = ".athing"
	}

	if log == nil {
		log = logger.Discard()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	}

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}

	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	b := &BrowserFetcher{
		ctx:         ctx,
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		parser:      NewParser(),
		log:         log,
		next:        startURL,
		opts:        opts,
	}

	// Launch eagerly so a missing Chrome binary fails here rather than on the first page.
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)

			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]any{
			"Accept-Language": "en-US,en;q=0.9",
		})),
	)
	if err != nil {
		b.Close()

		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return b, nil
}

// FetchNextPage loads the next listing page, waits for its rows and parses the rendered markup.
func (b *BrowserFetcher) FetchNextPage(ctx context.Context) (collector.Page, error) {
	if b.next == "" {
		return collector.Page{}, ErrNoMorePages
	}

	runCtx, cancel := b.runContext(ctx)
	defer cancel()

	startTime := time.Now()

	var (
		outer    string
		location string
	)

	err := chromedp.Run(runCtx,
		chromedp.Navigate(b.next),
		chromedp.WaitReady(b.opts.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return collector.Page{}, fmt.Errorf("browser fetch of %s: %w", b.next, err)
	}

	listing, err := b.parser.Parse(strings.NewReader(outer), location)
	if err != nil {
		return collector.Page{}, fmt.Errorf("failed to parse %s: %w", location, err)
	}

	b.log.Debug("rendered page",
		"url", location,
		"records", len(listing.Records),
		"duration", time.Since(startTime).String(),
	)

	b.started = true
	b.next = listing.NextURL

	return collector.Page{
		Records: listing.Records,
		HasMore: listing.HasMore(),
	}, nil
}

// Screenshot saves a full-page PNG of the current page to path.
func (b *BrowserFetcher) Screenshot(ctx context.Context, path string) error {
	if !b.started {
		return fmt.Errorf("screenshot: %w", ErrNoPageLoaded)
	}

	runCtx, cancel := b.runContext(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	b.log.Info("screenshot saved", "path", path)

	return nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.ctxCancel()
	b.allocCancel()
}

// runContext bounds one browser operation by the configured timeout and the caller's context.
func (b *BrowserFetcher) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)

	return runCtx, func() {
		stop()
		cancel()
	}
}
