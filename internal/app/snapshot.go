package app

import (
	"fmt"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/opml"
)

// AccountSnapshot is the persisted form of an account: its name, kind and
// rendered OPML.
type AccountSnapshot struct {
	Name model.AccountName
	Type model.AccountType
	OPML []byte
}

// Snapshot renders every account for storage.
func Snapshot(m *Model) ([]AccountSnapshot, error) {
	accounts := m.accounts.All()
	out := make([]AccountSnapshot, 0, len(accounts))
	for _, a := range accounts {
		data, err := a.Subscriptions.Render(string(a.Name), m.now())
		if err != nil {
			return nil, fmt.Errorf("render account %s: %w", a.Name, err)
		}
		out = append(out, AccountSnapshot{Name: a.Name, Type: a.Type, OPML: data})
	}
	return out, nil
}

// Restore returns the events that rebuild snap in an empty model.
func Restore(snap AccountSnapshot) []Event {
	events := []Event{CreateAccount{Type: snap.Type}}
	if snap.Name != snap.Type.DisplayName() {
		events = append(events, RenameAccount{Account: snap.Type.DisplayName(), Name: snap.Name})
	}
	// An account without outlines renders an empty body, which Import rejects.
	if _, err := opml.Parse(string(snap.OPML)); apperr.IsMalformed(err, apperr.EmptyBody) {
		return events
	}
	return append(events, ImportDocument{Account: snap.Name, Text: string(snap.OPML)})
}

// RestoreAll returns the events that rebuild every snapshot. Renamed
// accounts are restored first so that an account still carrying its
// type's display name does not block a renamed sibling of the same type.
func RestoreAll(snaps []AccountSnapshot) []Event {
	var renamed, plain []AccountSnapshot
	for _, s := range snaps {
		if s.Name != s.Type.DisplayName() {
			renamed = append(renamed, s)
		} else {
			plain = append(plain, s)
		}
	}
	var events []Event
	for _, s := range append(renamed, plain...) {
		events = append(events, Restore(s)...)
	}
	return events
}
