// Package app is the subscription-management state machine. Update is the
// only way to change a Model; it returns the effects the host must run.
package app

import (
	"time"

	"github.com/bryan-buckman/crabnews/internal/account"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/google/uuid"
)

// Notification is the last message shown to the user.
type Notification struct {
	Message string
}

// Model is the application state. It has no exported fields; read it through
// the accessors or View.
type Model struct {
	accounts     account.Registry
	active       model.AccountName
	preferences  model.Preferences
	notification Notification
	exportDir    string
	now          func() time.Time
	newID        func() uuid.UUID
}

// Option configures a new Model.
type Option func(*Model)

// WithExportDir sets the directory OPML exports are written to.
func WithExportDir(dir string) Option {
	return func(m *Model) { m.exportDir = dir }
}

// WithPreferences sets the initial preferences.
func WithPreferences(p model.Preferences) Option {
	return func(m *Model) { m.preferences = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithRequestIDs overrides the HTTP request id generator.
func WithRequestIDs(newID func() uuid.UUID) Option {
	return func(m *Model) { m.newID = newID }
}

// NewModel returns a model with no accounts and default preferences.
func NewModel(opts ...Option) *Model {
	m := &Model{
		preferences: model.DefaultPreferences(),
		exportDir:   ".",
		now:         time.Now,
		newID:       uuid.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Accounts returns the accounts in display order.
func (m *Model) Accounts() []account.Account {
	return m.accounts.All()
}

// Account returns the named account; an empty name selects the active one.
func (m *Model) Account(name model.AccountName) (account.Account, bool) {
	if name == "" {
		name = m.active
	}
	return m.accounts.Find(name)
}

// Active returns the selected account name, or "" when there are none.
func (m *Model) Active() model.AccountName {
	return m.active
}

func (m *Model) Preferences() model.Preferences {
	return m.preferences
}

func (m *Model) Notification() Notification {
	return m.notification
}
