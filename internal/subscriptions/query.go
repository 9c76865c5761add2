package subscriptions

import (
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/opml"
)

// Folder is a read-only view of a root folder and its subscriptions.
type Folder struct {
	Name          model.FolderName
	Subscriptions []opml.Outline
}

// Outlines returns a deep copy of the root outlines.
func (t Tree) Outlines() []opml.Outline {
	return t.doc.Clone().Body.Outlines
}

// Folders returns the root folders in document order.
func (t Tree) Folders() []Folder {
	var out []Folder
	for _, o := range t.doc.Body.Outlines {
		if !o.IsFolder() {
			continue
		}
		out = append(out, Folder{
			Name:          model.FolderName(o.Text),
			Subscriptions: o.Clone().Outlines,
		})
	}
	return out
}

// HasFolder reports whether a root folder is named name.
func (t Tree) HasFolder(name model.FolderName) bool {
	for _, o := range t.doc.Body.Outlines {
		if o.IsFolder() && o.Text == string(name) {
			return true
		}
	}
	return false
}

// RootSubscriptions returns the subscriptions that are not in a folder.
func (t Tree) RootSubscriptions() []opml.Outline {
	var out []opml.Outline
	for _, o := range t.doc.Body.Outlines {
		if !o.IsFolder() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Subscription finds the first subscription titled title in the scope.
func (t Tree) Subscription(folder *model.FolderName, title model.SubscriptionTitle) (opml.Outline, bool) {
	find := func(list []opml.Outline) (opml.Outline, bool) {
		for _, o := range list {
			if !o.IsFolder() && o.Text == string(title) {
				return o.Clone(), true
			}
		}
		return opml.Outline{}, false
	}
	if folder == nil {
		return find(t.doc.Body.Outlines)
	}
	for _, o := range t.doc.Body.Outlines {
		if o.Text != string(*folder) {
			continue
		}
		if sub, ok := find(o.Outlines); ok {
			return sub, true
		}
	}
	return opml.Outline{}, false
}

// Entries returns every subscription with its folder, in display order.
func (t Tree) Entries() []opml.FeedEntry {
	return opml.Entries(t.doc.Body.Outlines)
}
