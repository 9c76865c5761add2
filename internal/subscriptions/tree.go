// Package subscriptions implements the folder/subscription outline tree of an
// account.
//
// A tree has two levels: root outlines are either subscriptions (xmlUrl set)
// or folders, and folders hold subscriptions only. Every operation works on a
// deep copy of the receiver and returns the edited copy, so a failed edit
// leaves the caller's tree untouched.
package subscriptions

import (
	"fmt"
	"os"
	"time"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/bryan-buckman/crabnews/internal/feeds"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/opml"
	"github.com/mmcdole/gofeed"
)

// Tree pairs an OPML document with the feeds fetched for it.
type Tree struct {
	doc   opml.Document
	feeds feeds.Store
}

// New returns an empty tree.
func New() Tree {
	return Tree{doc: opml.NewDocument()}
}

func (t Tree) clone() Tree {
	return Tree{doc: t.doc.Clone(), feeds: t.feeds}
}

// --- Import / Export ---

// Import replaces the document with the parsed text. Fetched feeds are kept.
func (t Tree) Import(text string) (Tree, error) {
	doc, err := opml.Parse(text)
	if err != nil {
		return t, err
	}
	return Tree{doc: doc, feeds: t.feeds}, nil
}

// Render serializes the outlines under a fresh header titled name.
func (t Tree) Render(name string, now time.Time) ([]byte, error) {
	doc := opml.NewDocument()
	doc.Head = opml.NewHead(name, now)
	doc.Body.Outlines = t.Outlines()
	out, err := opml.Marshal(doc)
	if err != nil {
		return nil, &apperr.Malformed{Kind: apperr.BadXML, Err: err}
	}
	return out, nil
}

// Export writes the rendered document to path and returns a confirmation.
func (t Tree) Export(path, name string, now time.Time) (string, error) {
	out, err := t.Render(name, now)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", &apperr.IO{Op: "Failed to write file", Path: path, Err: err}
	}
	return fmt.Sprintf("Subscriptions exported to %q.", path), nil
}

// --- Folder Methods ---

func folderOutline(name string) opml.Outline {
	return opml.Outline{Text: name, Title: name}
}

// AddFolder appends a new root folder.
func (t Tree) AddFolder(name model.FolderName) (Tree, error) {
	if t.hasRoot(string(name)) {
		return t, &apperr.AlreadyExists{
			Action: "Cannot add new folder",
			Item:   string(name),
			Reason: "It already exists.",
		}
	}
	next := t.clone()
	next.doc.Body.Outlines = append(next.doc.Body.Outlines, folderOutline(string(name)))
	return next, nil
}

// DeleteFolder removes every root outline named name, with its children.
func (t Tree) DeleteFolder(name model.FolderName) Tree {
	next := t.clone()
	next.doc.Body.Outlines = removeByText(next.doc.Body.Outlines, string(name))
	return next
}

// RenameFolder renames every root outline called old.
func (t Tree) RenameFolder(old model.OldFolderName, name model.NewFolderName) (Tree, error) {
	if t.hasRoot(string(name)) {
		return t, &apperr.AlreadyExists{
			Action: "Cannot rename folder to",
			Item:   string(name),
			Reason: "It already exists.",
		}
	}
	next := t.clone()
	for i := range next.doc.Body.Outlines {
		o := &next.doc.Body.Outlines[i]
		if o.Text == string(old) {
			o.Text = string(name)
			o.Title = string(name)
		}
	}
	return next, nil
}

// --- Subscription Methods ---

func subscriptionOutline(title model.SubscriptionTitle, link model.SubscriptionLink) opml.Outline {
	return opml.Outline{Text: string(title), XMLURL: string(link)}
}

// AddSubscription adds a subscription under folder, or at root when folder
// is nil. The duplicate check only looks at the target scope.
func (t Tree) AddSubscription(folder *model.FolderName, title model.SubscriptionTitle, link model.SubscriptionLink) (Tree, error) {
	candidate := subscriptionOutline(title, link)
	if t.scopeContains(folder, candidate) {
		return t, &apperr.AlreadyExists{
			Action: "Cannot add new subscription",
			Item:   string(title),
			Reason: "You are already subscribed.",
		}
	}
	next := t.clone()
	next.appendTo(folder, candidate)
	return next, nil
}

// DeleteSubscription removes every subscription titled title from the scope.
func (t Tree) DeleteSubscription(folder *model.FolderName, title model.SubscriptionTitle) Tree {
	next := t.clone()
	next.removeFrom(folder, string(title))
	return next
}

// RenameSubscription retitles every subscription called old in the scope.
func (t Tree) RenameSubscription(folder *model.FolderName, link model.SubscriptionLink, old model.OldSubscriptionName, name model.NewSubscriptionName) (Tree, error) {
	candidate := subscriptionOutline(model.SubscriptionTitle(name), link)
	if t.scopeContains(folder, candidate) {
		return t, &apperr.AlreadyExists{
			Action: "Cannot rename subscription to",
			Item:   string(name),
			Reason: "It already exists.",
		}
	}
	next := t.clone()
	rename := func(list []opml.Outline) {
		for i := range list {
			if list[i].XMLURL != "" && list[i].Text == string(old) {
				list[i].Text = string(name)
			}
		}
	}
	if folder == nil {
		rename(next.doc.Body.Outlines)
		return next, nil
	}
	for i := range next.doc.Body.Outlines {
		if next.doc.Body.Outlines[i].Text == string(*folder) {
			rename(next.doc.Body.Outlines[i].Outlines)
		}
	}
	return next, nil
}

// MoveSubscription moves sub from oldFolder to newFolder (nil is root).
// Moving between two root scopes is always rejected, as is moving into a
// folder that does not exist.
func (t Tree) MoveSubscription(sub opml.Outline, oldFolder, newFolder *model.FolderName) (Tree, error) {
	moveErr := &apperr.AlreadyExists{
		Action: "Cannot move subscription to",
		Item:   sub.Text,
		Reason: "It already exists.",
	}
	if oldFolder == nil && newFolder == nil {
		return t, moveErr
	}
	if newFolder != nil && !t.HasFolder(*newFolder) {
		return t, &apperr.NotFound{
			Action: "Cannot find folder",
			Item:   string(*newFolder),
			Reason: "It does not exist.",
		}
	}
	next := t.DeleteSubscription(oldFolder, model.SubscriptionTitle(sub.Text))
	next, err := next.AddSubscription(newFolder, model.SubscriptionTitle(sub.Text), model.SubscriptionLink(sub.XMLURL))
	if err != nil {
		return t, moveErr
	}
	return next, nil
}

// --- Feed Methods ---

// AddFeed parses raw and stores the feed.
func (t Tree) AddFeed(raw []byte) (Tree, error) {
	store, err := t.feeds.Add(raw)
	if err != nil {
		return t, err
	}
	return Tree{doc: t.doc, feeds: store}, nil
}

// FindFeed returns the stored feed titled title.
func (t Tree) FindFeed(title string) (*gofeed.Feed, error) {
	return t.feeds.Find(title)
}

// Feeds returns all stored feeds.
func (t Tree) Feeds() []*gofeed.Feed {
	return t.feeds.All()
}

// --- Helpers ---

func (t Tree) hasRoot(text string) bool {
	for _, o := range t.doc.Body.Outlines {
		if o.Text == text {
			return true
		}
	}
	return false
}

func (t Tree) scopeContains(folder *model.FolderName, candidate opml.Outline) bool {
	if folder == nil {
		return opml.Contains(t.doc.Body.Outlines, candidate)
	}
	for _, o := range t.doc.Body.Outlines {
		if o.Text == string(*folder) && opml.Contains(o.Outlines, candidate) {
			return true
		}
	}
	return false
}

// appendTo mutates t; callers must pass a clone.
func (t *Tree) appendTo(folder *model.FolderName, o opml.Outline) {
	if folder == nil {
		t.doc.Body.Outlines = append(t.doc.Body.Outlines, o)
		return
	}
	for i := range t.doc.Body.Outlines {
		root := &t.doc.Body.Outlines[i]
		if root.Text == string(*folder) {
			root.Outlines = append(root.Outlines, o.Clone())
		}
	}
}

// removeFrom mutates t; callers must pass a clone.
func (t *Tree) removeFrom(folder *model.FolderName, text string) {
	if folder == nil {
		t.doc.Body.Outlines = removeSubscriptions(t.doc.Body.Outlines, text)
		return
	}
	for i := range t.doc.Body.Outlines {
		root := &t.doc.Body.Outlines[i]
		if root.Text == string(*folder) {
			root.Outlines = removeByText(root.Outlines, text)
		}
	}
}

func removeByText(list []opml.Outline, text string) []opml.Outline {
	out := list[:0]
	for _, o := range list {
		if o.Text != text {
			out = append(out, o)
		}
	}
	return out
}

// removeSubscriptions drops root subscriptions titled text but keeps any
// folder of the same name.
func removeSubscriptions(list []opml.Outline, text string) []opml.Outline {
	out := list[:0]
	for _, o := range list {
		if o.XMLURL != "" && o.Text == text {
			continue
		}
		out = append(out, o)
	}
	return out
}
