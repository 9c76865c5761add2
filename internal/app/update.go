package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bryan-buckman/crabnews/internal/account"
	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/subscriptions"
)

// Update applies ev to m and returns the effects for the host. The last
// effect is always Render. A failed operation only changes the notification.
func Update(ev Event, m *Model) []Effect {
	var effects []Effect
	switch ev := ev.(type) {
	case CreateAccount:
		m.createAccount(ev.Type)
	case DeleteAccount:
		m.deleteAccount(ev.Account)
	case RenameAccount:
		m.renameAccount(ev.Account, ev.Name)
	case SelectAccount:
		m.selectAccount(ev.Account)
	case ImportSubscriptions:
		m.importFile(ev.Account, ev.Path)
	case ImportDocument:
		m.edit(ev.Account, "Subscriptions imported.", func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.Import(ev.Text)
		})
	case ExportSubscriptions:
		m.export(ev.Account)
	case AddFolder:
		m.edit(ev.Account, fmt.Sprintf("Folder %q added.", ev.Folder), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.AddFolder(ev.Folder)
		})
	case DeleteFolder:
		m.edit(ev.Account, fmt.Sprintf("Folder %q deleted.", ev.Folder), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.DeleteFolder(ev.Folder), nil
		})
	case RenameFolder:
		m.edit(ev.Account, fmt.Sprintf("Folder renamed to %q.", ev.New), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.RenameFolder(ev.Old, ev.New)
		})
	case AddSubscription:
		m.edit(ev.Account, fmt.Sprintf("Subscription %q added.", ev.Title), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.AddSubscription(ev.Folder, ev.Title, ev.Link)
		})
	case DeleteSubscription:
		m.edit(ev.Account, fmt.Sprintf("Subscription %q deleted.", ev.Title), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.DeleteSubscription(ev.Folder, ev.Title), nil
		})
	case RenameSubscription:
		m.edit(ev.Account, fmt.Sprintf("Subscription renamed to %q.", ev.New), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			return t.RenameSubscription(ev.Folder, ev.Link, ev.Old, ev.New)
		})
	case MoveSubscription:
		m.edit(ev.Account, fmt.Sprintf("Subscription %q moved.", ev.Title), func(t subscriptions.Tree) (subscriptions.Tree, error) {
			sub, ok := t.Subscription(ev.From, ev.Title)
			if !ok {
				return t, subscriptionNotFound(ev.Title)
			}
			return t.MoveSubscription(sub, ev.From, ev.To)
		})
	case FetchFeed:
		effects = m.fetchFeed(ev)
	case RefreshAccount:
		effects = m.refresh(ev.Account)
	case FeedResponse:
		m.receiveFeed(ev)
	case SetPreferences:
		m.preferences = ev.Preferences
		m.notify("Preferences updated.")
	default:
		m.notify(fmt.Sprintf("Unknown event %T.", ev))
	}
	return append(effects, Render{})
}

func (m *Model) notify(msg string) {
	m.notification = Notification{Message: msg}
}

func (m *Model) fail(err error) {
	m.notify(err.Error())
}

// lookup resolves name (or the active account) to an existing account.
func (m *Model) lookup(name model.AccountName) (account.Account, error) {
	if name == "" {
		if m.active == "" {
			return account.Account{}, &apperr.NotFound{
				Action: "Cannot find account",
				Item:   "",
				Reason: "No account is selected.",
			}
		}
		name = m.active
	}
	a, ok := m.accounts.Find(name)
	if !ok {
		return account.Account{}, &apperr.NotFound{
			Action: "Cannot find account",
			Item:   string(name),
			Reason: "It does not exist.",
		}
	}
	return a, nil
}

// edit runs fn on a copy of the account's tree and commits the result only
// when fn succeeds.
func (m *Model) edit(name model.AccountName, success string, fn func(subscriptions.Tree) (subscriptions.Tree, error)) {
	a, err := m.lookup(name)
	if err != nil {
		m.fail(err)
		return
	}
	tree, err := fn(a.Subscriptions)
	if err != nil {
		m.fail(err)
		return
	}
	a.Subscriptions = tree
	m.accounts = m.accounts.Replace(a)
	m.notify(success)
}

// --- Accounts ---

func (m *Model) createAccount(t model.AccountType) {
	if t.DisplayName() == "" {
		m.notify(fmt.Sprintf("Unknown account type %q.", t))
		return
	}
	accounts, err := m.accounts.Add(t)
	if err != nil {
		m.fail(err)
		return
	}
	m.accounts = accounts
	if m.active == "" {
		m.active = t.DisplayName()
	}
	m.notify(fmt.Sprintf("Account %q created.", t.DisplayName()))
}

func (m *Model) deleteAccount(name model.AccountName) {
	if name == "" {
		a, err := m.lookup(name)
		if err != nil {
			m.fail(err)
			return
		}
		name = a.Name
	}
	m.accounts = m.accounts.Delete(name)
	if m.active == name {
		m.active = ""
		if all := m.accounts.All(); len(all) > 0 {
			m.active = all[0].Name
		}
	}
	m.notify(fmt.Sprintf("Account %q deleted.", name))
}

func (m *Model) renameAccount(old, name model.AccountName) {
	a, err := m.lookup(old)
	if err != nil {
		m.fail(err)
		return
	}
	accounts, err := m.accounts.Rename(a.Name, name)
	if err != nil {
		m.fail(err)
		return
	}
	m.accounts = accounts
	if m.active == a.Name {
		m.active = name
	}
	m.notify(fmt.Sprintf("Account renamed to %q.", name))
}

func (m *Model) selectAccount(name model.AccountName) {
	a, err := m.lookup(name)
	if err != nil {
		m.fail(err)
		return
	}
	m.active = a.Name
	m.notify(fmt.Sprintf("Account %q selected.", a.Name))
}

// --- Import / Export ---

func (m *Model) importFile(name model.AccountName, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		m.fail(&apperr.IO{Op: "Failed to read file", Path: path, Err: err})
		return
	}
	m.edit(name, "Subscriptions imported.", func(t subscriptions.Tree) (subscriptions.Tree, error) {
		return t.Import(string(data))
	})
}

// ExportPath returns where the named account is exported to.
func (m *Model) ExportPath(name model.AccountName) string {
	return filepath.Join(m.exportDir, string(name)+".opml")
}

func (m *Model) export(name model.AccountName) {
	a, err := m.lookup(name)
	if err != nil {
		m.fail(err)
		return
	}
	msg, err := a.Subscriptions.Export(m.ExportPath(a.Name), string(a.Name), m.now())
	if err != nil {
		m.fail(err)
		return
	}
	m.notify(msg)
}

// --- Feeds ---

func subscriptionNotFound(title model.SubscriptionTitle) error {
	return &apperr.NotFound{
		Action: "Cannot find subscription",
		Item:   string(title),
		Reason: "It does not exist.",
	}
}

func (m *Model) request(a model.AccountName, title model.SubscriptionTitle, link model.SubscriptionLink) HTTP {
	return HTTP{Request: Request{
		ID:           m.newID(),
		Method:       http.MethodGet,
		URL:          string(link),
		Account:      a,
		Subscription: title,
	}}
}

func (m *Model) fetchFeed(ev FetchFeed) []Effect {
	a, err := m.lookup(ev.Account)
	if err != nil {
		m.fail(err)
		return nil
	}
	link := ev.Link
	if link == "" {
		sub, ok := a.Subscriptions.Subscription(ev.Folder, ev.Title)
		if !ok {
			m.fail(subscriptionNotFound(ev.Title))
			return nil
		}
		link = model.SubscriptionLink(sub.XMLURL)
	}
	m.notify(fmt.Sprintf("Fetching %q.", ev.Title))
	return []Effect{m.request(a.Name, ev.Title, link)}
}

func (m *Model) refresh(name model.AccountName) []Effect {
	a, err := m.lookup(name)
	if err != nil {
		m.fail(err)
		return nil
	}
	entries := a.Subscriptions.Entries()
	effects := make([]Effect, 0, len(entries))
	for _, e := range entries {
		effects = append(effects, m.request(a.Name, model.SubscriptionTitle(e.Title), model.SubscriptionLink(e.URL)))
	}
	m.notify(fmt.Sprintf("Refreshing %d subscriptions.", len(entries)))
	return effects
}

func (m *Model) receiveFeed(ev FeedResponse) {
	if ev.Err != nil {
		m.notify(fmt.Sprintf("Failed to fetch %q: %v", ev.Request.URL, ev.Err))
		return
	}
	if len(ev.Body) == 0 {
		m.notify(fmt.Sprintf("Failed to fetch %q: empty response", ev.Request.URL))
		return
	}
	m.edit(ev.Request.Account, fmt.Sprintf("Feed %q updated.", ev.Request.Subscription), func(t subscriptions.Tree) (subscriptions.Tree, error) {
		return t.AddFeed(ev.Body)
	})
}
