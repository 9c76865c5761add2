package rss

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Per-host politeness defaults.
const (
	MaxConcurrencyPerDomain    = 2
	DelayBetweenDomainRequests = 500 * time.Millisecond
)

// hostGate bounds the requests to one host.
type hostGate struct {
	slots *semaphore.Weighted
	pace  *rate.Limiter
	held  atomic.Int32
}

// domainLimiter caps in-flight requests per host and spaces request starts
// to the same host.
type domainLimiter struct {
	mu        sync.Mutex
	perDomain int64
	spacing   time.Duration
	hosts     map[string]*hostGate
}

func newDomainLimiter(perDomain int, spacing time.Duration) *domainLimiter {
	if perDomain < 1 {
		perDomain = 1
	}
	return &domainLimiter{
		perDomain: int64(perDomain),
		spacing:   spacing,
		hosts:     make(map[string]*hostGate),
	}
}

func (dl *domainLimiter) gate(domain string) *hostGate {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	g, ok := dl.hosts[domain]
	if !ok {
		limit := rate.Inf
		if dl.spacing > 0 {
			limit = rate.Every(dl.spacing)
		}
		g = &hostGate{
			slots: semaphore.NewWeighted(dl.perDomain),
			pace:  rate.NewLimiter(limit, 1),
		}
		dl.hosts[domain] = g
	}
	return g
}

// acquire takes a slot for domain, then waits out the spacing. A cancelled
// ctx gives the slot back.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	g := dl.gate(domain)
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := g.pace.Wait(ctx); err != nil {
		g.slots.Release(1)
		return err
	}
	g.held.Add(1)
	return nil
}

func (dl *domainLimiter) release(domain string) {
	g := dl.gate(domain)
	g.held.Add(-1)
	g.slots.Release(1)
}

// inFlight reports the number of held slots for domain.
func (dl *domainLimiter) inFlight(domain string) int {
	return int(dl.gate(domain).held.Load())
}

// extractDomain returns the host of feedURL, or feedURL itself when it does
// not parse.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}
