package app

import (
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/google/uuid"
)

// Event is an input to Update. An empty Account field on any event means
// the active account.
type Event interface {
	event()
}

type CreateAccount struct {
	Type model.AccountType
}

type DeleteAccount struct {
	Account model.AccountName
}

type RenameAccount struct {
	Account model.AccountName
	Name    model.AccountName
}

type SelectAccount struct {
	Account model.AccountName
}

// ImportSubscriptions reads an OPML file from Path.
type ImportSubscriptions struct {
	Account model.AccountName
	Path    string
}

// ImportDocument imports OPML text the host has already read.
type ImportDocument struct {
	Account model.AccountName
	Text    string
}

// ExportSubscriptions writes the account's OPML to the export directory.
type ExportSubscriptions struct {
	Account model.AccountName
}

type AddFolder struct {
	Account model.AccountName
	Folder  model.FolderName
}

type DeleteFolder struct {
	Account model.AccountName
	Folder  model.FolderName
}

type RenameFolder struct {
	Account model.AccountName
	Old     model.OldFolderName
	New     model.NewFolderName
}

// AddSubscription adds at root when Folder is nil.
type AddSubscription struct {
	Account model.AccountName
	Folder  *model.FolderName
	Title   model.SubscriptionTitle
	Link    model.SubscriptionLink
}

type DeleteSubscription struct {
	Account model.AccountName
	Folder  *model.FolderName
	Title   model.SubscriptionTitle
}

type RenameSubscription struct {
	Account model.AccountName
	Folder  *model.FolderName
	Link    model.SubscriptionLink
	Old     model.OldSubscriptionName
	New     model.NewSubscriptionName
}

// MoveSubscription moves the subscription titled Title from From to To.
type MoveSubscription struct {
	Account model.AccountName
	Title   model.SubscriptionTitle
	From    *model.FolderName
	To      *model.FolderName
}

// FetchFeed requests the feed of one subscription. When Link is empty it is
// looked up from the subscription in Folder.
type FetchFeed struct {
	Account model.AccountName
	Folder  *model.FolderName
	Title   model.SubscriptionTitle
	Link    model.SubscriptionLink
}

// RefreshAccount requests every subscription of the account.
type RefreshAccount struct {
	Account model.AccountName
}

// FeedResponse resolves an HTTP effect. Err is set when the request failed.
type FeedResponse struct {
	Request Request
	Body    []byte
	Err     error
}

// SetPreferences replaces the user preferences.
type SetPreferences struct {
	Preferences model.Preferences
}

func (CreateAccount) event()       {}
func (DeleteAccount) event()       {}
func (RenameAccount) event()       {}
func (SelectAccount) event()       {}
func (ImportSubscriptions) event() {}
func (ImportDocument) event()      {}
func (ExportSubscriptions) event() {}
func (AddFolder) event()           {}
func (DeleteFolder) event()        {}
func (RenameFolder) event()        {}
func (AddSubscription) event()     {}
func (DeleteSubscription) event()  {}
func (RenameSubscription) event()  {}
func (MoveSubscription) event()    {}
func (FetchFeed) event()           {}
func (RefreshAccount) event()      {}
func (FeedResponse) event()        {}
func (SetPreferences) event()      {}

// Effect is an instruction for the host, carried out in emission order.
type Effect interface {
	effect()
}

// Render asks the host to fetch a new View.
type Render struct{}

// HTTP asks the host to perform Request and send back a FeedResponse.
type HTTP struct {
	Request Request
}

func (Render) effect() {}
func (HTTP) effect()   {}

// Request describes an outgoing HTTP request and the subscription it is for.
type Request struct {
	ID           uuid.UUID
	Method       string
	URL          string
	Account      model.AccountName
	Subscription model.SubscriptionTitle
}
