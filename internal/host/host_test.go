package host

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/crabnews/internal/app"
	"github.com/bryan-buckman/crabnews/internal/database"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Go Blog</title><link>https://go.dev/blog</link><description>The Go blog</description>
<item><title>Go 1.26 is released</title><link>https://go.dev/blog/go1.26</link></item>
</channel></rss>`

type memStore struct {
	mu       sync.Mutex
	accounts map[model.AccountName]database.AccountRecord
	feeds    map[model.AccountName]map[model.SubscriptionLink]database.FeedRecord
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[model.AccountName]database.AccountRecord),
		feeds:    make(map[model.AccountName]map[model.SubscriptionLink]database.FeedRecord),
	}
}

func (s *memStore) Close() error         { return nil }
func (s *memStore) DatabaseType() string { return "memory" }

func (s *memStore) SaveAccount(_ context.Context, rec database.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[rec.Name] = rec
	return nil
}

func (s *memStore) DeleteAccount(_ context.Context, name model.AccountName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, name)
	delete(s.feeds, name)
	return nil
}

func (s *memStore) RenameAccount(_ context.Context, old, name model.AccountName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.accounts[old]; ok {
		delete(s.accounts, old)
		rec.Name = name
		s.accounts[name] = rec
	}
	if feeds, ok := s.feeds[old]; ok {
		delete(s.feeds, old)
		for link, f := range feeds {
			f.Account = name
			feeds[link] = f
		}
		s.feeds[name] = feeds
	}
	return nil
}

func (s *memStore) ListAccounts(_ context.Context) ([]database.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.AccountRecord, 0, len(s.accounts))
	for _, rec := range s.accounts {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memStore) SaveFeed(_ context.Context, rec database.FeedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feeds[rec.Account] == nil {
		s.feeds[rec.Account] = make(map[model.SubscriptionLink]database.FeedRecord)
	}
	s.feeds[rec.Account][rec.Link] = rec
	return nil
}

func (s *memStore) ListFeeds(_ context.Context, account model.AccountName) ([]database.FeedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.FeedRecord
	for _, f := range s.feeds[account] {
		out = append(out, f)
	}
	return out, nil
}

func (s *memStore) account(name model.AccountName) (database.AccountRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[name]
	return rec, ok
}

func (s *memStore) feedCount(name model.AccountName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds[name])
}

type fakeFetcher struct {
	mu   sync.Mutex
	reqs []app.Request
	body map[string]string
}

func (f *fakeFetcher) ExecuteAll(_ context.Context, reqs []app.Request, _ int) []app.FeedResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, reqs...)
	out := make([]app.FeedResponse, len(reqs))
	for i, r := range reqs {
		if body, ok := f.body[r.URL]; ok {
			out[i] = app.FeedResponse{Request: r, Body: []byte(body)}
		} else {
			out[i] = app.FeedResponse{Request: r, Err: errors.New("connection refused")}
		}
	}
	return out
}

func (f *fakeFetcher) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func newModel() *app.Model {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	return app.NewModel(app.WithClock(func() time.Time { return now }))
}

func startHost(t *testing.T, store database.Store, fetcher Fetcher, restore bool) (*Host, context.CancelFunc) {
	t.Helper()
	h := New(newModel(), store, fetcher, 2, zerolog.Nop())
	if restore {
		require.NoError(t, h.Restore(context.Background()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return h, stop
}

func dispatch(t *testing.T, h *Host, ev app.Event) app.ViewModel {
	t.Helper()
	view, err := h.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	return view
}

func TestHost_PersistsAccountChanges(t *testing.T) {
	store := newMemStore()
	h, _ := startHost(t, store, &fakeFetcher{}, false)

	view := dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	require.Len(t, view.Accounts, 1)
	assert.Equal(t, `Account "On Device" created.`, view.Notification)
	_, ok := store.account("On Device")
	assert.True(t, ok)

	dispatch(t, h, app.AddSubscription{Title: "Go Blog", Link: "https://go.dev/blog/feed.atom"})
	rec, _ := store.account("On Device")
	assert.Contains(t, string(rec.OPML), `xmlUrl="https://go.dev/blog/feed.atom"`)

	dispatch(t, h, app.RenameAccount{Account: "On Device", Name: "Laptop"})
	_, ok = store.account("On Device")
	assert.False(t, ok)
	_, ok = store.account("Laptop")
	assert.True(t, ok)

	dispatch(t, h, app.DeleteAccount{Account: "Laptop"})
	_, ok = store.account("Laptop")
	assert.False(t, ok)
}

func TestHost_FetchFeedsBack(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{body: map[string]string{"https://go.dev/blog/feed.atom": sampleRSS}}
	h, _ := startHost(t, store, fetcher, false)

	views, cancel := h.Subscribe()
	defer cancel()

	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddSubscription{Title: "Go Blog", Link: "https://go.dev/blog/feed.atom"})
	view := dispatch(t, h, app.FetchFeed{Title: "Go Blog"})
	assert.Equal(t, `Fetching "Go Blog".`, view.Notification)

	require.Eventually(t, func() bool {
		v := h.Current()
		return len(v.Subscriptions) == 1 && v.Subscriptions[0].Fetched
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `Feed "Go Blog" updated.`, h.Current().Notification)
	assert.Equal(t, 1, store.feedCount("On Device"))
	assert.Equal(t, 1, fetcher.requests())

	select {
	case v := <-views:
		assert.NotEmpty(t, v.Accounts)
	default:
		t.Fatal("subscriber saw no view")
	}
}

func TestHost_FetchFailureNotifies(t *testing.T) {
	store := newMemStore()
	h, _ := startHost(t, store, &fakeFetcher{}, false)

	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddSubscription{Title: "HN", Link: "https://news.ycombinator.com/rss"})
	dispatch(t, h, app.FetchFeed{Title: "HN"})

	require.Eventually(t, func() bool {
		return h.Current().Notification == `Failed to fetch "https://news.ycombinator.com/rss": connection refused`
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, store.feedCount("On Device"))
}

func TestHost_RefreshAll(t *testing.T) {
	fetcher := &fakeFetcher{}
	h, _ := startHost(t, newMemStore(), fetcher, false)

	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddSubscription{Title: "A", Link: "https://a.example/rss"})
	dispatch(t, h, app.AddSubscription{Title: "B", Link: "https://b.example/rss"})
	dispatch(t, h, app.CreateAccount{Type: model.AccountICloud})
	dispatch(t, h, app.AddSubscription{Account: "iCloud", Title: "C", Link: "https://c.example/rss"})

	h.RefreshAll(context.Background())
	require.Eventually(t, func() bool { return fetcher.requests() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestHost_DispatchAfterStop(t *testing.T) {
	h, stop := startHost(t, newMemStore(), &fakeFetcher{}, false)
	stop()
	_, err := h.Dispatch(context.Background(), app.CreateAccount{Type: model.AccountLocal})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestHost_RestoreFromSQLite(t *testing.T) {
	store, err := database.New(filepath.Join(t.TempDir(), "crabnews.db"))
	require.NoError(t, err)
	defer store.Close()

	fetcher := &fakeFetcher{body: map[string]string{"https://go.dev/blog/feed.atom": sampleRSS}}
	h, stop := startHost(t, store, fetcher, false)
	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.RenameAccount{Account: "On Device", Name: "Work"})
	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddFolder{Account: "Work", Folder: "Tech"})
	dispatch(t, h, app.AddSubscription{Account: "Work", Folder: model.FolderPtr("Tech"), Title: "Go Blog", Link: "https://go.dev/blog/feed.atom"})
	dispatch(t, h, app.FetchFeed{Account: "Work", Folder: model.FolderPtr("Tech"), Title: "Go Blog"})
	require.Eventually(t, func() bool {
		feeds, err := store.ListFeeds(context.Background(), "Work")
		return err == nil && len(feeds) == 1
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	restored, _ := startHost(t, store, &fakeFetcher{}, true)
	view := restored.Current()
	require.Len(t, view.Accounts, 2)
	assert.Equal(t, "Work", view.Active)
	require.Len(t, view.Folders, 1)
	assert.Equal(t, "Tech", view.Folders[0].Name)
	require.Len(t, view.Folders[0].Subscriptions, 1)
	assert.True(t, view.Folders[0].Subscriptions[0].Fetched)
	require.Len(t, view.Feeds, 1)
	assert.Equal(t, "Go Blog", view.Feeds[0].Title)
}

func TestHost_Snapshot(t *testing.T) {
	h, _ := startHost(t, newMemStore(), &fakeFetcher{}, false)
	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddFolder{Folder: "Tech"})

	snaps, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Contains(t, string(snaps[0].OPML), `text="Tech"`)
}

func TestHost_RenameActiveKeepsStoredFeeds(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{body: map[string]string{"https://go.dev/blog/feed.atom": sampleRSS}}
	h, _ := startHost(t, store, fetcher, false)

	dispatch(t, h, app.CreateAccount{Type: model.AccountLocal})
	dispatch(t, h, app.AddSubscription{Title: "Go Blog", Link: "https://go.dev/blog/feed.atom"})
	dispatch(t, h, app.FetchFeed{Title: "Go Blog"})
	require.Eventually(t, func() bool { return store.feedCount("On Device") == 1 }, 2*time.Second, 10*time.Millisecond)

	view := dispatch(t, h, app.RenameAccount{Name: "Laptop"})
	assert.Equal(t, "Laptop", view.Active)
	_, ok := store.account("On Device")
	assert.False(t, ok)
	_, ok = store.account("Laptop")
	assert.True(t, ok)
	assert.Equal(t, 1, store.feedCount("Laptop"), "feed bodies follow the rename")
}

func TestRenamedFrom(t *testing.T) {
	before := map[model.AccountName]bool{"On Device": true, "iCloud": true}

	old, ok := renamedFrom(before, map[model.AccountName]bool{"Laptop": true, "iCloud": true}, "Laptop")
	require.True(t, ok)
	assert.Equal(t, model.AccountName("On Device"), old)

	_, ok = renamedFrom(before, before, "iCloud")
	assert.False(t, ok, "failed rename changes nothing")
}
