package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hnsort/internal/logger"
)

// RetryPolicy defines how often a page request is retried and how long to wait between attempts.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// Delay returns the wait before the given 1-based attempt. The first attempt never waits.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.InitialDelay <= 0 {
		return 0
	}

	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		delay *= multiplier
	}

	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}

	return p.MaxAttempts
}

// retryable reports whether a failed request may succeed on a later attempt.
// Status 0 means the request never got a response.
func retryable(status int, err error) bool {
	if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrEmptyListing) {
		return false
	}

	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Attempt records the result of one page request.
type Attempt struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Number     int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// AttemptLog collects request attempts per URL. It is safe for concurrent use.
type AttemptLog struct {
	mu       sync.Mutex
	attempts map[string][]Attempt
	order    []string
}

// NewAttemptLog creates an empty log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{attempts: make(map[string][]Attempt)}
}

// Record adds an attempt for url.
func (l *AttemptLog) Record(url string, err error, statusCode int, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.attempts[url]; !seen {
		l.order = append(l.order, url)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	l.attempts[url] = append(l.attempts[url], Attempt{
		Timestamp:  time.Now(),
		URL:        url,
		Error:      errMsg,
		Number:     len(l.attempts[url]) + 1,
		Duration:   duration,
		StatusCode: statusCode,
		Success:    err == nil,
	})
}

// Attempts returns the attempts made for url.
func (l *AttemptLog) Attempts(url string) []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Attempt(nil), l.attempts[url]...)
}

// AttemptStats summarizes an AttemptLog.
type AttemptStats struct {
	TotalURLs          int
	SuccessfulURLs     int
	FailedURLs         int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
}

// String returns a one-line summary.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"URLs: %d total, %d success, %d failed | Attempts: %d total, %d success, %d failed",
		s.TotalURLs,
		s.SuccessfulURLs,
		s.FailedURLs,
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
	)
}

// Stats returns totals over all recorded attempts.
func (l *AttemptLog) Stats() AttemptStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := AttemptStats{TotalURLs: len(l.attempts)}

	for _, results := range l.attempts {
		stats.TotalAttempts += len(results)

		urlSuccess := false

		for _, result := range results {
			if result.Success {
				stats.SuccessfulAttempts++
				urlSuccess = true
			} else {
				stats.FailedAttempts++
			}
		}

		if urlSuccess {
			stats.SuccessfulURLs++
		} else {
			stats.FailedURLs++
		}
	}

	return stats
}

// LogSummary logs every URL that needed more than one attempt, then the totals.
func (l *AttemptLog) LogSummary(log *logger.Logger) {
	l.mu.Lock()

	for _, url := range l.order {
		results := l.attempts[url]
		if len(results) < 2 {
			continue
		}

		last := results[len(results)-1]
		log.Info("page request retried",
			"url", url,
			"attempts", len(results),
			"success", last.Success,
			"last_error", last.Error,
		)
	}

	l.mu.Unlock()

	log.Info("fetch attempt summary", "stats", l.Stats().String())
}
