// Package host runs the application core: it serialises events onto one
// goroutine, carries out the effects Update returns and keeps the store in
// step with the model.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bryan-buckman/crabnews/internal/app"
	"github.com/bryan-buckman/crabnews/internal/database"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by Dispatch once Run has returned.
var ErrStopped = errors.New("host stopped")

// Fetcher executes HTTP effects.
type Fetcher interface {
	ExecuteAll(ctx context.Context, reqs []app.Request, concurrency int) []app.FeedResponse
}

type envelope struct {
	ev    app.Event
	reply chan app.ViewModel
	do    func(m *app.Model)
}

// Host owns an app.Model. All access goes through Dispatch.
type Host struct {
	model       *app.Model
	store       database.Store
	fetcher     Fetcher
	concurrency int
	logger      zerolog.Logger

	events  chan envelope
	stopped chan struct{}
	fetches sync.WaitGroup

	mu          sync.Mutex
	current     app.ViewModel
	subscribers map[chan app.ViewModel]struct{}
}

// New creates a host around m. Call Restore before Run to load stored state.
func New(m *app.Model, store database.Store, fetcher Fetcher, concurrency int, logger zerolog.Logger) *Host {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Host{
		model:       m,
		store:       store,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger,
		events:      make(chan envelope),
		stopped:     make(chan struct{}),
		current:     app.View(m),
		subscribers: make(map[chan app.ViewModel]struct{}),
	}
}

// Run processes events until ctx is done, then waits for in-flight fetches.
func (h *Host) Run(ctx context.Context) {
	defer func() {
		close(h.stopped)
		h.fetches.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.events:
			if env.do != nil {
				env.do(h.model)
				continue
			}
			view := h.apply(ctx, env.ev)
			if env.reply != nil {
				env.reply <- view
			}
		}
	}
}

// Dispatch sends ev to the run loop and returns the view after it is
// handled.
func (h *Host) Dispatch(ctx context.Context, ev app.Event) (app.ViewModel, error) {
	env := envelope{ev: ev, reply: make(chan app.ViewModel, 1)}
	select {
	case h.events <- env:
	case <-h.stopped:
		return app.ViewModel{}, ErrStopped
	case <-ctx.Done():
		return app.ViewModel{}, ctx.Err()
	}
	select {
	case view := <-env.reply:
		return view, nil
	case <-ctx.Done():
		return app.ViewModel{}, ctx.Err()
	}
}

// Snapshot renders every account on the loop goroutine.
func (h *Host) Snapshot(ctx context.Context) ([]app.AccountSnapshot, error) {
	type result struct {
		snaps []app.AccountSnapshot
		err   error
	}
	done := make(chan result, 1)
	env := envelope{do: func(m *app.Model) {
		snaps, err := app.Snapshot(m)
		done <- result{snaps, err}
	}}
	select {
	case h.events <- env:
	case <-h.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-done:
		return r.snaps, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the most recently rendered view.
func (h *Host) Current() app.ViewModel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe returns a channel that receives every rendered view. Slow
// readers only see the latest one. Call cancel to stop receiving.
func (h *Host) Subscribe() (<-chan app.ViewModel, func()) {
	ch := make(chan app.ViewModel, 1)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
}

// RefreshAll dispatches RefreshAccount for every account.
func (h *Host) RefreshAll(ctx context.Context) {
	for _, a := range h.Current().Accounts {
		if _, err := h.Dispatch(ctx, app.RefreshAccount{Account: model.AccountName(a.Name)}); err != nil {
			h.logger.Warn().Err(err).Str("account", a.Name).Msg("refresh dispatch failed")
			return
		}
	}
}

// Restore loads stored accounts and feed bodies into the model. It must be
// called before Run.
func (h *Host) Restore(ctx context.Context) error {
	recs, err := h.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	snaps := make([]app.AccountSnapshot, 0, len(recs))
	for _, rec := range recs {
		snaps = append(snaps, app.AccountSnapshot{Name: rec.Name, Type: rec.Type, OPML: rec.OPML})
	}
	for _, ev := range app.RestoreAll(snaps) {
		app.Update(ev, h.model)
	}

	feedCount := 0
	for _, rec := range recs {
		feeds, err := h.store.ListFeeds(ctx, rec.Name)
		if err != nil {
			return fmt.Errorf("list feeds for %s: %w", rec.Name, err)
		}
		for _, f := range feeds {
			app.Update(app.FeedResponse{
				Request: app.Request{
					ID:           uuid.New(),
					Method:       http.MethodGet,
					URL:          string(f.Link),
					Account:      f.Account,
					Subscription: f.Subscription,
				},
				Body: f.Body,
			}, h.model)
			feedCount++
		}
	}
	h.logger.Info().Int("accounts", len(recs)).Int("feeds", feedCount).Msg("state restored")
	h.publish(app.View(h.model))
	return nil
}

// apply runs one event through the core on the loop goroutine.
func (h *Host) apply(ctx context.Context, ev app.Event) app.ViewModel {
	before := h.accountNames()
	effects := app.Update(ev, h.model)
	h.logger.Debug().Str("event", fmt.Sprintf("%T", ev)).Int("effects", len(effects)).Msg("update")

	if note := h.model.Notification(); note.Message != "" {
		h.logger.Debug().Str("notification", note.Message).Msg("notify")
	}
	h.persist(ctx, ev, before)

	var reqs []app.Request
	view := h.Current()
	for _, eff := range effects {
		switch e := eff.(type) {
		case app.HTTP:
			reqs = append(reqs, e.Request)
		case app.Render:
			view = app.View(h.model)
			h.publish(view)
		}
	}
	if len(reqs) > 0 {
		h.startFetches(ctx, reqs)
	}
	return view
}

// startFetches runs reqs in the background and feeds each response back
// into the loop.
func (h *Host) startFetches(ctx context.Context, reqs []app.Request) {
	h.fetches.Add(1)
	go func() {
		defer h.fetches.Done()
		for _, resp := range h.fetcher.ExecuteAll(ctx, reqs, h.concurrency) {
			select {
			case h.events <- envelope{ev: resp}:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (h *Host) publish(view app.ViewModel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = view
	for ch := range h.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

func (h *Host) accountNames() map[model.AccountName]bool {
	names := make(map[model.AccountName]bool)
	for _, a := range h.model.Accounts() {
		names[a.Name] = true
	}
	return names
}

// persist writes the store changes caused by ev. Failures are logged; the
// model stays authoritative.
func (h *Host) persist(ctx context.Context, ev app.Event, before map[model.AccountName]bool) {
	switch e := ev.(type) {
	case app.SelectAccount, app.ExportSubscriptions, app.FetchFeed, app.RefreshAccount, app.SetPreferences:
		return
	case app.FeedResponse:
		h.saveFeed(ctx, e)
		return
	case app.RenameAccount:
		// e.Account may be empty, so the old name comes from the diff.
		if old, ok := renamedFrom(before, h.accountNames(), e.Name); ok {
			if err := h.store.RenameAccount(ctx, old, e.Name); err != nil {
				h.logger.Error().Err(err).Msg("rename stored account")
			}
		}
	}

	after := h.accountNames()
	for name := range before {
		if !after[name] {
			if err := h.store.DeleteAccount(ctx, name); err != nil {
				h.logger.Error().Err(err).Msg("delete stored account")
			}
		}
	}

	snaps, err := app.Snapshot(h.model)
	if err != nil {
		h.logger.Error().Err(err).Msg("snapshot")
		return
	}
	for i, s := range snaps {
		rec := database.AccountRecord{Name: s.Name, Type: s.Type, OPML: s.OPML, Position: i}
		if err := h.store.SaveAccount(ctx, rec); err != nil {
			h.logger.Error().Err(err).Str("account", s.Name.String()).Msg("save account")
		}
	}
}

// renamedFrom returns the single name that disappeared between before and
// after when name is the one that appeared.
func renamedFrom(before, after map[model.AccountName]bool, name model.AccountName) (model.AccountName, bool) {
	if before[name] || !after[name] {
		return "", false
	}
	var gone []model.AccountName
	for n := range before {
		if !after[n] {
			gone = append(gone, n)
		}
	}
	if len(gone) != 1 {
		return "", false
	}
	return gone[0], true
}

func (h *Host) saveFeed(ctx context.Context, resp app.FeedResponse) {
	if resp.Err != nil || len(resp.Body) == 0 {
		return
	}
	if gofeed.DetectFeedType(bytes.NewReader(resp.Body)) == gofeed.FeedTypeUnknown {
		return
	}
	if _, ok := h.model.Account(resp.Request.Account); !ok {
		return
	}
	rec := database.FeedRecord{
		Account:      resp.Request.Account,
		Link:         model.SubscriptionLink(resp.Request.URL),
		Subscription: resp.Request.Subscription,
		Body:         resp.Body,
	}
	if err := h.store.SaveFeed(ctx, rec); err != nil {
		h.logger.Error().Err(err).Str("url", resp.Request.URL).Msg("save feed")
	}
}
