package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	name TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	opml BLOB NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS feeds (
	account TEXT NOT NULL,
	link TEXT NOT NULL,
	subscription TEXT NOT NULL,
	body BLOB NOT NULL,
	fetched_at DATETIME NOT NULL,
	PRIMARY KEY (account, link)
);
`

// New opens or creates an SQLite database at the given path.
func New(path string) (Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &sqlStore{conn: conn, name: "SQLite"}, nil
}
