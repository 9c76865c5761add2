// Package feeds keeps the parsed feed documents fetched for a subscription tree.
package feeds

import (
	"bytes"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/mmcdole/gofeed"
)

// Store is an ordered, copy-on-write collection of parsed feeds keyed by
// title. Stored feeds are never mutated after parsing.
type Store struct {
	feeds []*gofeed.Feed
}

// Add parses raw as an RSS, Atom or JSON feed and returns a new store
// holding it. A feed whose title is already present replaces the old one in
// place.
func (s Store) Add(raw []byte) (Store, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return s, &apperr.Malformed{Kind: apperr.BadFeed, Err: err}
	}

	next := make([]*gofeed.Feed, len(s.feeds), len(s.feeds)+1)
	copy(next, s.feeds)
	for i, f := range next {
		if f.Title == parsed.Title {
			next[i] = parsed
			return Store{feeds: next}, nil
		}
	}
	return Store{feeds: append(next, parsed)}, nil
}

// Find returns the first feed whose title equals title exactly.
func (s Store) Find(title string) (*gofeed.Feed, error) {
	for _, f := range s.feeds {
		if f.Title == title {
			return f, nil
		}
	}
	return nil, &apperr.NotFound{
		Action: "Cannot find feed",
		Item:   title,
		Reason: "Not fetched for the specified subscription.",
	}
}

// All returns the feeds in fetch order.
func (s Store) All() []*gofeed.Feed {
	return append([]*gofeed.Feed(nil), s.feeds...)
}

// Len returns the number of stored feeds.
func (s Store) Len() int {
	return len(s.feeds)
}
