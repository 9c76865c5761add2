// Package account holds the named accounts and the registry that orders them.
package account

import (
	"fmt"
	"strings"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/subscriptions"
	"github.com/rs/zerolog"
)

// Account is a named owner of one subscription tree.
type Account struct {
	Name          model.AccountName
	Type          model.AccountType
	Subscriptions subscriptions.Tree
}

// New returns an account of kind t with its canonical name and an empty tree.
func New(t model.AccountType) Account {
	return Account{
		Name:          t.DisplayName(),
		Type:          t,
		Subscriptions: subscriptions.New(),
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (a Account) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", string(a.Name)).
		Str("type", string(a.Type)).
		Int("subscriptions", len(a.Subscriptions.Entries()))
}

// Registry is an ordered list of accounts with unique names. Insertion order
// is display order.
type Registry struct {
	accounts []Account
}

// FindIndex returns the position of the account named name. Callers must
// check existence first; a missing account is a programming error.
func (r Registry) FindIndex(name model.AccountName) int {
	for i, a := range r.accounts {
		if a.Name == name {
			return i
		}
	}
	panic(fmt.Sprintf("account %q not in registry", name))
}

// Find returns the account named name.
func (r Registry) Find(name model.AccountName) (Account, bool) {
	for _, a := range r.accounts {
		if a.Name == name {
			return a, true
		}
	}
	return Account{}, false
}

// Add appends a new account of kind t.
func (r Registry) Add(t model.AccountType) (Registry, error) {
	name := t.DisplayName()
	if _, ok := r.Find(name); ok {
		return r, &apperr.AlreadyExists{
			Action: "Cannot create account",
			Item:   string(name),
			Reason: "It already exists.",
		}
	}
	next := r.copy()
	next.accounts = append(next.accounts, New(t))
	return next, nil
}

// Delete removes the account named name, if present.
func (r Registry) Delete(name model.AccountName) Registry {
	next := Registry{accounts: make([]Account, 0, len(r.accounts))}
	for _, a := range r.accounts {
		if a.Name != name {
			next.accounts = append(next.accounts, a)
		}
	}
	return next
}

// Replace swaps in a for the existing account with the same name.
func (r Registry) Replace(a Account) Registry {
	next := r.copy()
	next.accounts[next.FindIndex(a.Name)] = a
	return next
}

// Rename gives the account named old the name name, keeping its tree.
func (r Registry) Rename(old, name model.AccountName) (Registry, error) {
	if err := checkName(name); err != nil {
		return r, err
	}
	if _, ok := r.Find(name); ok {
		return r, &apperr.AlreadyExists{
			Action: "Cannot rename account to",
			Item:   string(name),
			Reason: "It already exists.",
		}
	}
	next := r.copy()
	next.accounts[next.FindIndex(old)].Name = name
	return next, nil
}

// All returns the accounts in display order.
func (r Registry) All() []Account {
	return r.copy().accounts
}

// Len returns the number of accounts.
func (r Registry) Len() int {
	return len(r.accounts)
}

// checkName rejects names that would address the active account or escape
// the export directory once used as a file name.
func checkName(name model.AccountName) error {
	reason := ""
	switch s := string(name); {
	case strings.TrimSpace(s) == "":
		reason = "The name is empty."
	case strings.ContainsAny(s, `/\`) || s == "." || s == "..":
		reason = "The name cannot be used as a file name."
	default:
		return nil
	}
	return &apperr.InvalidName{
		Action: "Cannot rename account to",
		Item:   string(name),
		Reason: reason,
	}
}

func (r Registry) copy() Registry {
	return Registry{accounts: append([]Account(nil), r.accounts...)}
}
