package subscriptions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/bryan-buckman/crabnews/internal/opml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	blogTitle = model.SubscriptionTitle("Go Blog")
	blogLink  = model.SubscriptionLink("https://go.dev/blog/feed.atom")
	hnTitle   = model.SubscriptionTitle("Hacker News")
	hnLink    = model.SubscriptionLink("https://news.ycombinator.com/rss")
)

func folder(name string) *model.FolderName {
	return model.FolderPtr(name)
}

func mustAddFolder(t *testing.T, tree Tree, name string) Tree {
	t.Helper()
	next, err := tree.AddFolder(model.FolderName(name))
	require.NoError(t, err)
	return next
}

func mustAddSubscription(t *testing.T, tree Tree, f *model.FolderName, title model.SubscriptionTitle, link model.SubscriptionLink) Tree {
	t.Helper()
	next, err := tree.AddSubscription(f, title, link)
	require.NoError(t, err)
	return next
}

func TestAddFolder_Duplicate(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")

	same, err := tree.AddFolder("News")
	require.Error(t, err)
	assert.Equal(t, `Cannot add new folder "News". It already exists.`, err.Error())
	assert.Len(t, same.Folders(), 1)

	tree = mustAddFolder(t, tree, "news")
	assert.Len(t, tree.Folders(), 2, "folder names are case-sensitive")
}

func TestAddFolder_LeavesReceiverUntouched(t *testing.T) {
	base := New()
	_ = mustAddFolder(t, base, "News")
	assert.Empty(t, base.Outlines())
}

func TestDeleteFolder(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)

	deleted := tree.DeleteFolder("News")
	assert.Empty(t, deleted.Folders())
	assert.Len(t, tree.Folders(), 1)

	again := deleted.DeleteFolder("News")
	assert.Empty(t, again.Outlines(), "deleting a missing folder is a no-op")
}

func TestRenameFolder(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddFolder(t, tree, "Tech")
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)

	_, err := tree.RenameFolder("News", "Tech")
	require.Error(t, err)
	assert.Equal(t, `Cannot rename folder to "Tech". It already exists.`, err.Error())

	renamed, err := tree.RenameFolder("News", "World")
	require.NoError(t, err)
	folders := renamed.Folders()
	require.Len(t, folders, 2)
	assert.Equal(t, model.FolderName("World"), folders[0].Name)
	require.Len(t, folders[0].Subscriptions, 1)

	outlines := renamed.Outlines()
	assert.Equal(t, "World", outlines[0].Title)
}

func TestAddSubscription_Root(t *testing.T) {
	tree := mustAddSubscription(t, New(), nil, blogTitle, blogLink)

	sub, ok := tree.Subscription(nil, blogTitle)
	require.True(t, ok)
	assert.Equal(t, string(blogLink), sub.XMLURL)

	_, err := tree.AddSubscription(nil, blogTitle, blogLink)
	require.Error(t, err)
	assert.Equal(t, `Cannot add new subscription "Go Blog". You are already subscribed.`, err.Error())
}

func TestAddSubscription_DeleteThenReAdd(t *testing.T) {
	once := mustAddSubscription(t, New(), nil, blogTitle, blogLink)
	again := mustAddSubscription(t, once.DeleteSubscription(nil, blogTitle), nil, blogTitle, blogLink)
	assert.Equal(t, once.Outlines(), again.Outlines())
}

func TestAddSubscription_ScopesAreIndependent(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)

	_, err := tree.AddSubscription(folder("News"), blogTitle, blogLink)
	assert.True(t, apperr.IsAlreadyExists(err))

	assert.Len(t, tree.RootSubscriptions(), 1)
	assert.Len(t, tree.Folders()[0].Subscriptions, 1)
}

func TestAddSubscription_DuplicateComparesLink(t *testing.T) {
	tree := mustAddSubscription(t, New(), nil, blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, nil, blogTitle, "https://go.dev/blog/other.atom")
	assert.Len(t, tree.RootSubscriptions(), 2)
}

func TestDeleteSubscription(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, nil, hnTitle, hnLink)

	tree = tree.DeleteSubscription(folder("News"), blogTitle)
	assert.Empty(t, tree.Folders()[0].Subscriptions)
	assert.Len(t, tree.RootSubscriptions(), 1)

	tree = tree.DeleteSubscription(nil, blogTitle)
	assert.Len(t, tree.RootSubscriptions(), 1, "missing subscription is a no-op")

	tree = tree.DeleteSubscription(nil, hnTitle)
	assert.Empty(t, tree.RootSubscriptions())
	assert.Len(t, tree.Folders(), 1)
}

func TestDeleteSubscription_RootKeepsFolderOfSameName(t *testing.T) {
	tree := mustAddFolder(t, New(), "Go Blog")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)

	tree = tree.DeleteSubscription(nil, blogTitle)
	assert.Empty(t, tree.RootSubscriptions())
	assert.Len(t, tree.Folders(), 1)
}

func TestRenameSubscription(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, nil, hnTitle, blogLink)
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)

	_, err := tree.RenameSubscription(nil, blogLink, model.OldSubscriptionName(blogTitle), model.NewSubscriptionName(hnTitle))
	require.Error(t, err)
	assert.Equal(t, `Cannot rename subscription to "Hacker News". It already exists.`, err.Error())

	renamed, err := tree.RenameSubscription(folder("News"), blogLink, model.OldSubscriptionName(blogTitle), model.NewSubscriptionName(hnTitle))
	require.NoError(t, err, "a different scope never conflicts")
	_, ok := renamed.Subscription(folder("News"), hnTitle)
	assert.True(t, ok)
	_, ok = renamed.Subscription(nil, blogTitle)
	assert.True(t, ok, "root subscription keeps its title")
}

func TestMoveSubscription_RootToFolder(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)
	sub, ok := tree.Subscription(nil, blogTitle)
	require.True(t, ok)

	moved, err := tree.MoveSubscription(sub, nil, folder("News"))
	require.NoError(t, err)
	assert.Empty(t, moved.RootSubscriptions())
	require.Len(t, moved.Folders()[0].Subscriptions, 1)
	assert.True(t, sub.Equal(moved.Folders()[0].Subscriptions[0]))
}

func TestMoveSubscription_FolderToRootAndFolder(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddFolder(t, tree, "Tech")
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)
	sub, ok := tree.Subscription(folder("News"), blogTitle)
	require.True(t, ok)

	toTech, err := tree.MoveSubscription(sub, folder("News"), folder("Tech"))
	require.NoError(t, err)
	assert.Empty(t, toTech.Folders()[0].Subscriptions)
	assert.Len(t, toTech.Folders()[1].Subscriptions, 1)

	toRoot, err := tree.MoveSubscription(sub, folder("News"), nil)
	require.NoError(t, err)
	assert.Empty(t, toRoot.Folders()[0].Subscriptions)
	assert.Len(t, toRoot.RootSubscriptions(), 1)
}

func TestMoveSubscription_RootToRootRejected(t *testing.T) {
	tree := mustAddSubscription(t, New(), nil, blogTitle, blogLink)
	sub, _ := tree.Subscription(nil, blogTitle)

	same, err := tree.MoveSubscription(sub, nil, nil)
	require.Error(t, err)
	assert.Equal(t, `Cannot move subscription to "Go Blog". It already exists.`, err.Error())
	assert.Len(t, same.RootSubscriptions(), 1)
}

func TestMoveSubscription_DestinationConflictKeepsSource(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, folder("News"), blogTitle, blogLink)
	sub, _ := tree.Subscription(nil, blogTitle)

	after, err := tree.MoveSubscription(sub, nil, folder("News"))
	require.Error(t, err)
	assert.True(t, apperr.IsAlreadyExists(err))
	assert.Len(t, after.RootSubscriptions(), 1, "source is not deleted on failure")
	assert.Len(t, tree.RootSubscriptions(), 1)
}

func TestMoveSubscription_MissingFolderKeepsSource(t *testing.T) {
	tree := mustAddSubscription(t, New(), nil, blogTitle, blogLink)
	tree = mustAddSubscription(t, tree, nil, hnTitle, hnLink)
	sub, _ := tree.Subscription(nil, blogTitle)

	after, err := tree.MoveSubscription(sub, nil, folder("Hacker News"))
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err), "a subscription is not a folder")
	assert.Equal(t, `Cannot find folder "Hacker News". It does not exist.`, err.Error())
	assert.Len(t, after.RootSubscriptions(), 2)

	_, err = tree.MoveSubscription(sub, nil, folder("Nope"))
	assert.True(t, apperr.IsNotFound(err))
}

func TestHasFolder(t *testing.T) {
	tree := mustAddFolder(t, New(), "News")
	tree = mustAddSubscription(t, tree, nil, blogTitle, blogLink)
	assert.True(t, tree.HasFolder("News"))
	assert.False(t, tree.HasFolder("Go Blog"))
	assert.False(t, tree.HasFolder("Tech"))
}

const importOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Imported</title></head>
  <body>
    <outline text="Tech" title="Tech">
      <outline text="Go Blog" xmlUrl="https://go.dev/blog/feed.atom"/>
    </outline>
    <outline text="Hacker News" xmlUrl="https://news.ycombinator.com/rss"/>
  </body>
</opml>`

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Hacker News</title><link>https://news.ycombinator.com/</link>
<item><title>Show HN</title><link>https://news.ycombinator.com/item?id=1</link></item>
</channel></rss>`

func TestImport(t *testing.T) {
	tree, err := New().AddFeed([]byte(sampleRSS))
	require.NoError(t, err)

	imported, err := tree.Import(importOPML)
	require.NoError(t, err)
	assert.Len(t, imported.Folders(), 1)
	assert.Len(t, imported.RootSubscriptions(), 1)
	_, err = imported.FindFeed("Hacker News")
	assert.NoError(t, err, "import keeps fetched feeds")
}

func TestImport_Errors(t *testing.T) {
	base := mustAddFolder(t, New(), "News")

	for name, tc := range map[string]struct {
		text string
		want string
	}{
		"malformed": {text: "<opml", want: "Failed to process XML file"},
		"version":   {text: `<opml version="0.1"><body><outline text="x"/></body></opml>`, want: `Unsupported OPML version: "0.1"`},
		"empty":     {text: `<opml version="2.0"><body></body></opml>`, want: "OPML body has no <outline> elements"},
	} {
		t.Run(name, func(t *testing.T) {
			same, err := base.Import(tc.text)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.Len(t, same.Folders(), 1)
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	tree, err := New().Import(importOPML)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "On Device.opml")
	msg, err := tree.Export(path, "On Device", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, msg, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := opml.Parse(string(data))
	require.NoError(t, err)
	assert.Equal(t, "On Device", doc.Head.Title)
	assert.Equal(t, opml.OwnerName, doc.Head.OwnerName)
	assert.Equal(t, opml.OwnerID, doc.Head.OwnerID)

	again, err := New().Import(string(data))
	require.NoError(t, err)
	assert.Equal(t, tree.Outlines(), again.Outlines())
}

func TestExport_IOError(t *testing.T) {
	tree := mustAddSubscription(t, New(), nil, blogTitle, blogLink)
	path := filepath.Join(t.TempDir(), "missing", "x.opml")
	_, err := tree.Export(path, "On Device", time.Now())
	require.Error(t, err)
	var ioErr *apperr.IO
	assert.ErrorAs(t, err, &ioErr)
}

func TestFeeds(t *testing.T) {
	tree, err := New().AddFeed([]byte(sampleRSS))
	require.NoError(t, err)
	f, err := tree.FindFeed("Hacker News")
	require.NoError(t, err)
	assert.Len(t, f.Items, 1)
	assert.Len(t, tree.Feeds(), 1)

	_, err = tree.AddFeed([]byte("nope"))
	assert.True(t, apperr.IsMalformed(err, apperr.BadFeed))
}

func TestEntries(t *testing.T) {
	tree, err := New().Import(importOPML)
	require.NoError(t, err)
	assert.Equal(t, []opml.FeedEntry{
		{Folder: "Tech", Title: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
		{Title: "Hacker News", URL: "https://news.ycombinator.com/rss"},
	}, tree.Entries())
}
