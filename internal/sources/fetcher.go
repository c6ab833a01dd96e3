package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; ResumeMatcher/1.0)"

	maxBodyBytes   = 8 << 20
	retryBaseDelay = 300 * time.Millisecond
)

// FetcherOptions configures the shared HTTP path used by live sources.
type FetcherOptions struct {
	MinDelay        time.Duration // minimum gap between requests to one origin
	MaxDelay        time.Duration // MinDelay plus jitter never exceeds this
	MaxRetries      int
	Timeout         time.Duration
	UserAgent       string
	MaxConnsPerHost int
}

// FetchError describes a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Fetcher performs GETs with per-origin pacing, jitter and retries over a
// pooled client. It is safe for concurrent use. A Fetcher belongs to one
// pipeline run; Close releases its connections.
type Fetcher struct {
	opts      FetcherOptions
	client    *http.Client
	transport *http.Transport
	logger    *zap.Logger

	mu   sync.Mutex
	last map[string]time.Time

	now    func() time.Time
	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewFetcher(opts FetcherOptions, logger *zap.Logger) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = 4
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = opts.MaxConnsPerHost
	transport.MaxIdleConnsPerHost = opts.MaxConnsPerHost

	f := &Fetcher{
		opts:      opts,
		transport: transport,
		client:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		logger:    logger,
		last:      make(map[string]time.Time),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	f.jitter = f.randomJitter
	return f
}

// Get fetches rawURL and returns the body of a 2xx response.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Message: "invalid URL", Cause: err}
	}
	origin := u.Scheme + "://" + u.Host

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			f.logger.Debug("fetch.retry",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := f.wait(ctx, origin); err != nil {
			return nil, err
		}
		body, err := f.do(ctx, rawURL, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: "build request", Cause: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Message: "read body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return body, nil
}

// wait reserves the next request slot for origin and sleeps until it.
// Slots for one origin are handed out in order, each at least MinDelay plus
// its jitter after the previous one; other origins are unaffected.
func (f *Fetcher) wait(ctx context.Context, origin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	now := f.now()
	next := now
	if prev, ok := f.last[origin]; ok {
		if earliest := prev.Add(f.opts.MinDelay); earliest.After(next) {
			next = earliest
		}
	}
	next = next.Add(f.jitter())
	f.last[origin] = next
	f.mu.Unlock()

	if d := next.Sub(now); d > 0 {
		return f.sleep(ctx, d)
	}
	return nil
}

// LastRequest returns the most recent slot reserved for origin.
func (f *Fetcher) LastRequest(origin string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.last[origin]
	return t, ok
}

func (f *Fetcher) randomJitter() time.Duration {
	span := f.opts.MaxDelay - f.opts.MinDelay
	if span <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(span)))
}

// Close releases pooled connections. It is safe to call more than once and
// before any request was made.
func (f *Fetcher) Close() {
	if f == nil || f.transport == nil {
		return
	}
	f.transport.CloseIdleConnections()
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode != 0 {
		return fe.StatusCode == http.StatusTooManyRequests || fe.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
