package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/crabnews/internal/model"
)

// sqlStore implements Store over database/sql. Queries are written with ?
// placeholders and rebound for drivers that number them.
type sqlStore struct {
	conn     *sql.DB
	name     string
	numbered bool
}

var _ Store = (*sqlStore)(nil)

// Close closes the database connection.
func (db *sqlStore) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *sqlStore) DatabaseType() string {
	return db.name
}

// rebind turns ? placeholders into $1, $2, ... when needed.
func (db *sqlStore) rebind(query string) string {
	if !db.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *sqlStore) exec(ctx context.Context, q sqlExecer, query string, args ...any) error {
	_, err := q.ExecContext(ctx, db.rebind(query), args...)
	return err
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// inTx runs fn in a transaction, rolling back on error.
func (db *sqlStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Account Methods ---

// SaveAccount inserts or replaces the account row.
func (db *sqlStore) SaveAccount(ctx context.Context, rec AccountRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	err := db.exec(ctx, db.conn, `
		INSERT INTO accounts (name, type, opml, position, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			type = excluded.type,
			opml = excluded.opml,
			position = excluded.position,
			updated_at = excluded.updated_at`,
		string(rec.Name), string(rec.Type), rec.OPML, rec.Position, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save account %s: %w", rec.Name, err)
	}
	return nil
}

// DeleteAccount removes the account and its feeds. Missing accounts are
// not an error.
func (db *sqlStore) DeleteAccount(ctx context.Context, name model.AccountName) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := db.exec(ctx, tx, "DELETE FROM feeds WHERE account = ?", string(name)); err != nil {
			return err
		}
		return db.exec(ctx, tx, "DELETE FROM accounts WHERE name = ?", string(name))
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", name, err)
	}
	return nil
}

// RenameAccount moves the account row and its feeds to a new name.
func (db *sqlStore) RenameAccount(ctx context.Context, old, name model.AccountName) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := db.exec(ctx, tx, "UPDATE accounts SET name = ? WHERE name = ?", string(name), string(old)); err != nil {
			return err
		}
		return db.exec(ctx, tx, "UPDATE feeds SET account = ? WHERE account = ?", string(name), string(old))
	})
	if err != nil {
		return fmt.Errorf("rename account %s: %w", old, err)
	}
	return nil
}

// ListAccounts returns every account in position order.
func (db *sqlStore) ListAccounts(ctx context.Context) ([]AccountRecord, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT name, type, opml, position, updated_at FROM accounts ORDER BY position, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountRecord
	for rows.Next() {
		var rec AccountRecord
		var name, typ string
		if err := rows.Scan(&name, &typ, &rec.OPML, &rec.Position, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Name = model.AccountName(name)
		rec.Type = model.AccountType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Feed Methods ---

// SaveFeed stores the body fetched for a subscription link, replacing any
// earlier one.
func (db *sqlStore) SaveFeed(ctx context.Context, rec FeedRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	err := db.exec(ctx, db.conn, `
		INSERT INTO feeds (account, link, subscription, body, fetched_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account, link) DO UPDATE SET
			subscription = excluded.subscription,
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		string(rec.Account), string(rec.Link), string(rec.Subscription), rec.Body, rec.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("save feed %s: %w", rec.Link, err)
	}
	return nil
}

// ListFeeds returns the stored bodies for an account, oldest fetch first.
func (db *sqlStore) ListFeeds(ctx context.Context, account model.AccountName) ([]FeedRecord, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(
		"SELECT account, link, subscription, body, fetched_at FROM feeds WHERE account = ? ORDER BY fetched_at, link"),
		string(account))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FeedRecord
	for rows.Next() {
		var rec FeedRecord
		var acct, link, sub string
		if err := rows.Scan(&acct, &link, &sub, &rec.Body, &rec.FetchedAt); err != nil {
			return nil, err
		}
		rec.Account = model.AccountName(acct)
		rec.Link = model.SubscriptionLink(link)
		rec.Subscription = model.SubscriptionTitle(sub)
		out = append(out, rec)
	}
	return out, rows.Err()
}
