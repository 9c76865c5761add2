// Package model defines shared identifiers and value types.
package model

// FolderName is the text of a root-level folder outline.
type FolderName string

func (n FolderName) String() string { return string(n) }

// OldFolderName is the current name of a folder being renamed.
type OldFolderName string

func (n OldFolderName) String() string { return string(n) }

// NewFolderName is the target name of a folder being renamed.
type NewFolderName string

func (n NewFolderName) String() string { return string(n) }

// SubscriptionTitle is the display text of a subscription outline.
type SubscriptionTitle string

func (t SubscriptionTitle) String() string { return string(t) }

// SubscriptionLink is the feed URL (xmlUrl) of a subscription outline.
type SubscriptionLink string

func (l SubscriptionLink) String() string { return string(l) }

// OldSubscriptionName is the current title of a subscription being renamed.
type OldSubscriptionName string

func (n OldSubscriptionName) String() string { return string(n) }

// NewSubscriptionName is the target title of a subscription being renamed.
type NewSubscriptionName string

func (n NewSubscriptionName) String() string { return string(n) }

// AccountName identifies an account. Matching is exact and case-sensitive.
type AccountName string

func (n AccountName) String() string { return string(n) }

// FolderPtr returns a pointer to name, or nil for the empty string.
// The tree operations use a nil folder to address the root scope.
func FolderPtr(name string) *FolderName {
	if name == "" {
		return nil
	}
	f := FolderName(name)
	return &f
}
