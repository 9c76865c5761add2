package rss

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller calls tick on a repeating schedule. The interval is re-read after
// every tick so preference changes apply from the next cycle.
type Poller struct {
	interval func() time.Duration
	tick     func(ctx context.Context)
	logger   zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a poller. It does nothing until Start.
func NewPoller(interval func() time.Duration, tick func(ctx context.Context), logger zerolog.Logger) *Poller {
	return &Poller{
		interval: interval,
		tick:     tick,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs tick immediately and then once per interval.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-p.stopChan
			cancel()
		}()

		for {
			p.tick(ctx)

			interval := p.interval()
			p.logger.Debug().Dur("interval", interval).Msg("poller sleeping")
			timer := time.NewTimer(interval)
			select {
			case <-p.stopChan:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// Stop ends the loop and waits for the current tick to return.
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
