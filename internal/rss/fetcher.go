// Package rss performs the HTTP requests the application core asks for and
// schedules periodic refreshes.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bryan-buckman/crabnews/internal/app"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// Fetch defaults.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 << 20
	UserAgent          = "CrabNews/1.0"
)

// Fetcher executes app.Request values over HTTP.
type Fetcher struct {
	client      *http.Client
	limiter     *domainLimiter
	maxBodySize int64
	logger      zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithMaxBodySize caps how many bytes of a response are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) { f.maxBodySize = n }
}

// WithDomainLimits overrides the per-host concurrency and spacing.
func WithDomainLimits(perDomain int, spacing time.Duration) Option {
	return func(f *Fetcher) { f.limiter = newDomainLimiter(perDomain, spacing) }
}

// NewFetcher creates a fetcher with polite per-host limits.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     newDomainLimiter(MaxConcurrencyPerDomain, DelayBetweenDomainRequests),
		maxBodySize: DefaultMaxBodySize,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Execute performs req and returns the response to feed back into the core.
// Non-2xx statuses and oversized bodies are reported as failures. There is
// no retry.
func (f *Fetcher) Execute(ctx context.Context, req app.Request) app.FeedResponse {
	start := time.Now()
	body, err := f.do(ctx, req)
	fetchDuration.Observe(time.Since(start).Seconds())

	log := f.logger.With().
		Str("url", req.URL).
		Str("account", req.Account.String()).
		Str("subscription", req.Subscription.String()).
		Logger()
	if err != nil {
		log.Warn().Err(err).Msg("fetch failed")
		return app.FeedResponse{Request: req, Err: err}
	}

	fetchTotal.WithLabelValues(resultOK).Inc()
	if gofeed.DetectFeedType(bytes.NewReader(body)) == gofeed.FeedTypeUnknown {
		log.Debug().Int("bytes", len(body)).Msg("response does not look like a feed")
	}
	log.Debug().Int("bytes", len(body)).Dur("took", time.Since(start)).Msg("fetched")
	return app.FeedResponse{Request: req, Body: body}
}

func (f *Fetcher) do(ctx context.Context, req app.Request) ([]byte, error) {
	domain := extractDomain(req.URL)
	if err := f.limiter.acquire(ctx, domain); err != nil {
		fetchTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("rate limit cancelled for %s: %w", req.URL, err)
	}
	defer f.limiter.release(domain)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		fetchTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		fetchTotal.WithLabelValues(resultError).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchTotal.WithLabelValues(resultHTTPError).Inc()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		fetchTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		fetchTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("response exceeds %d bytes", f.maxBodySize)
	}
	return body, nil
}

// ExecuteAll runs reqs on a pool of concurrency workers. Responses are
// returned in request order. Requests not started before ctx is cancelled
// resolve with ctx.Err().
func (f *Fetcher) ExecuteAll(ctx context.Context, reqs []app.Request, concurrency int) []app.FeedResponse {
	responses := make([]app.FeedResponse, len(reqs))
	if len(reqs) == 0 {
		return responses
	}
	if concurrency < 1 {
		concurrency = 1
	}

	f.logger.Info().Int("requests", len(reqs)).Int("concurrency", concurrency).Msg("fetching")

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				responses[idx] = f.Execute(ctx, reqs[idx])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(reqs); next++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for ; next < len(reqs); next++ {
		responses[next] = app.FeedResponse{Request: reqs[next], Err: ctx.Err()}
	}
	return responses
}
