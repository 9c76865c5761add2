// Package database persists account snapshots and fetched feed bodies.
package database

import (
	"context"
	"time"

	"github.com/bryan-buckman/crabnews/internal/model"
)

// AccountRecord is one stored account. Position keeps the registry order.
type AccountRecord struct {
	Name      model.AccountName
	Type      model.AccountType
	OPML      []byte
	Position  int
	UpdatedAt time.Time
}

// FeedRecord is the last successful response body for a subscription.
type FeedRecord struct {
	Account      model.AccountName
	Link         model.SubscriptionLink
	Subscription model.SubscriptionTitle
	Body         []byte
	FetchedAt    time.Time
}

// Store defines the persistence operations the host needs.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Account operations
	SaveAccount(ctx context.Context, rec AccountRecord) error
	DeleteAccount(ctx context.Context, name model.AccountName) error
	RenameAccount(ctx context.Context, old, name model.AccountName) error
	ListAccounts(ctx context.Context) ([]AccountRecord, error)

	// Feed operations
	SaveFeed(ctx context.Context, rec FeedRecord) error
	ListFeeds(ctx context.Context, account model.AccountName) ([]FeedRecord, error)
}

// Options selects a backend. DatabaseURL wins over Path when both are set.
type Options struct {
	Path        string
	DatabaseURL string
}

// Open connects to PostgreSQL when a URL is given, SQLite otherwise.
func Open(opts Options) (Store, error) {
	if opts.DatabaseURL != "" {
		return NewPostgres(opts.DatabaseURL)
	}
	return New(opts.Path)
}
