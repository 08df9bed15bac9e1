package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hnsort/internal/collector"
	"hnsort/internal/logger"
	"hnsort/pkg/utils"
)

// Fetcher errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrNoMorePages          = errors.New("no more pages")
	ErrNoPageLoaded         = errors.New("no page loaded yet")
	ErrInvalidURL           = errors.New("invalid listing url")
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	// MaxBodyKb caps how much of each response is read.
	MaxBodyKb int
}

// HTTPFetcher walks the listing with plain GET requests, following the "More" link.
type HTTPFetcher struct {
	client   *http.Client
	parser   *Parser
	log      *logger.Logger
	headers  *utils.HTTPHelper
	attempts *AttemptLog
	retry    RetryPolicy
	next     string
	maxBody  int64
}

var _ collector.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher starting at startURL.
func NewHTTPFetcher(startURL string, opts HTTPOptions, log *logger.Logger) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	if opts.MaxBodyKb <= 0 {
		opts.MaxBodyKb = 4096
	}

	if log == nil {
		log = logger.Discard()
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		parser:   NewParser(),
		log:      log,
		headers:  utils.NewHTTPHelper(opts.UserAgent),
		attempts: NewAttemptLog(),
		retry:    opts.Retry,
		next:     startURL,
		maxBody:  int64(opts.MaxBodyKb) * 1024,
	}
}

// Attempts returns the log of every request made so far.
func (f *HTTPFetcher) Attempts() *AttemptLog {
	return f.attempts
}

// FetchNextPage downloads and parses the current page, then advances to its "More" link.
// Network errors, 429 and 5xx responses are retried per the retry policy.
// Failures leave the position unchanged and no records are returned.
func (f *HTTPFetcher) FetchNextPage(ctx context.Context) (collector.Page, error) {
	if f.next == "" {
		return collector.Page{}, ErrNoMorePages
	}

	if !f.headers.IsValidURL(f.next) {
		return collector.Page{}, fmt.Errorf("%w: %q", ErrInvalidURL, f.next)
	}

	var lastErr error

	for attempt := 1; attempt <= f.retry.attempts(); attempt++ {
		if delay := f.retry.Delay(attempt); delay > 0 {
			f.log.Warn("retrying page request", "url", f.next, "attempt", attempt, "delay", delay.String(), "error", lastErr)

			select {
			case <-ctx.Done():
				return collector.Page{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		startTime := time.Now()
		listing, status, err := f.fetch(ctx, f.next)
		f.attempts.Record(f.next, err, status, time.Since(startTime))

		if err == nil {
			f.log.Debug("fetched page",
				"url", f.next,
				"records", len(listing.Records),
				"attempt", attempt,
				"duration", time.Since(startTime).String(),
			)

			f.next = listing.NextURL

			return collector.Page{
				Records: listing.Records,
				HasMore: listing.HasMore(),
			}, nil
		}

		lastErr = err

		if ctx.Err() != nil || !retryable(status, err) {
			break
		}
	}

	return collector.Page{}, lastErr
}

// fetch performs one GET and parses the body. status is 0 when no response arrived.
func (f *HTTPFetcher) fetch(ctx context.Context, url string) (*Listing, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = f.headers.BuildHeaders(nil)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatusCode, resp.StatusCode, url)
	}

	// Resolve relative links against the final URL after redirects.
	pageURL := resp.Request.URL.String()

	listing, err := f.parser.Parse(io.LimitReader(resp.Body, f.maxBody), pageURL)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	return listing, resp.StatusCode, nil
}
