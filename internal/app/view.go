package app

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/opml"
	"github.com/bryan-buckman/crabnews/internal/subscriptions"
	"github.com/dustin/go-humanize"
	"github.com/mmcdole/gofeed"
)

const summaryLimit = 280

// ViewModel is the read-only snapshot the host renders.
type ViewModel struct {
	Accounts      []AccountView      `json:"accounts"`
	Active        string             `json:"active"`
	Folders       []FolderView       `json:"folders"`
	Subscriptions []SubscriptionView `json:"subscriptions"`
	Feeds         []FeedView         `json:"feeds"`
	Preferences   model.Preferences  `json:"preferences"`
	Notification  string             `json:"notification"`
}

type AccountView struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Active        bool   `json:"active"`
	Subscriptions int    `json:"subscriptions"`
}

type FolderView struct {
	Name          string             `json:"name"`
	Subscriptions []SubscriptionView `json:"subscriptions"`
}

type SubscriptionView struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	HTMLURL string `json:"html_url,omitempty"`
	Fetched bool   `json:"fetched"`
}

type FeedView struct {
	Title       string      `json:"title"`
	Link        string      `json:"link"`
	Description string      `json:"description"`
	Entries     []EntryView `json:"entries"`
}

type EntryView struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Published string `json:"published,omitempty"`
}

// View derives the display snapshot of m. The tree and feeds shown are those
// of the active account.
func View(m *Model) ViewModel {
	v := ViewModel{
		Active:       string(m.active),
		Preferences:  m.preferences,
		Notification: m.notification.Message,
	}
	for _, a := range m.accounts.All() {
		v.Accounts = append(v.Accounts, AccountView{
			Name:          string(a.Name),
			Type:          string(a.Type),
			Active:        a.Name == m.active,
			Subscriptions: len(a.Subscriptions.Entries()),
		})
	}

	a, ok := m.accounts.Find(m.active)
	if !ok {
		return v
	}
	tree := a.Subscriptions
	for _, f := range tree.Folders() {
		fv := FolderView{Name: string(f.Name)}
		for _, s := range f.Subscriptions {
			fv.Subscriptions = append(fv.Subscriptions, subscriptionView(tree, s))
		}
		v.Folders = append(v.Folders, fv)
	}
	for _, s := range tree.RootSubscriptions() {
		v.Subscriptions = append(v.Subscriptions, subscriptionView(tree, s))
	}
	now := m.now()
	for _, f := range tree.Feeds() {
		v.Feeds = append(v.Feeds, feedView(f, now))
	}
	return v
}

func subscriptionView(tree subscriptions.Tree, o opml.Outline) SubscriptionView {
	_, err := tree.FindFeed(o.Text)
	return SubscriptionView{
		Title:   o.Text,
		Link:    o.XMLURL,
		HTMLURL: o.HTMLURL,
		Fetched: err == nil,
	}
}

func feedView(f *gofeed.Feed, now time.Time) FeedView {
	fv := FeedView{
		Title:       f.Title,
		Link:        f.Link,
		Description: plainText(f.Description),
	}
	for _, item := range f.Items {
		ev := EntryView{
			Title: item.Title,
			Link:  item.Link,
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		ev.Summary = plainText(summary)
		if item.PublishedParsed != nil {
			ev.Published = humanize.RelTime(*item.PublishedParsed, now, "ago", "from now")
		}
		fv.Entries = append(fv.Entries, ev)
	}
	return fv
}

// plainText strips markup and truncates to summaryLimit runes.
func plainText(s string) string {
	if s == "" {
		return ""
	}
	text := s
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > summaryLimit {
		text = string(r[:summaryLimit]) + "…"
	}
	return text
}
