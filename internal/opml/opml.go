// Package opml handles parsing and writing OPML subscription documents.
package opml

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/bryan-buckman/crabnews/internal/apperr"
	"github.com/ncruces/go-strftime"
)

// Header fields written on export.
const (
	OwnerName = "Crab News"
	OwnerID   = "https://github.com/bryan-buckman/crabnews"

	// DateCreatedLayout is the strftime layout of the dateCreated header.
	DateCreatedLayout = "%Y - %a %b %e %T"
)

// SupportedVersions lists the accepted values of the version attribute.
var SupportedVersions = []string{"1.0", "1.1", "2.0"}

// Document represents the root of an OPML document.
type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    *Head    `xml:"head,omitempty"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
	OwnerName   string `xml:"ownerName,omitempty"`
	OwnerID     string `xml:"ownerId,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or subscription).
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	Version     string    `xml:"version,attr,omitempty"`
	HTMLURL     string    `xml:"htmlUrl,attr,omitempty"`
	XMLURL      string    `xml:"xmlUrl,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// NewDocument returns an empty version 2.0 document.
func NewDocument() Document {
	return Document{Version: "2.0"}
}

// NewHead builds the export header for a document titled title.
func NewHead(title string, now time.Time) *Head {
	return &Head{
		Title:       title,
		DateCreated: strftime.Format(DateCreatedLayout, now),
		OwnerName:   OwnerName,
		OwnerID:     OwnerID,
	}
}

// Parse reads an OPML document and validates its version and body.
func Parse(text string) (Document, error) {
	var doc Document
	if err := xml.NewDecoder(strings.NewReader(text)).Decode(&doc); err != nil {
		return Document{}, &apperr.Malformed{Kind: apperr.BadXML, Err: err}
	}
	if !supported(doc.Version) {
		return Document{}, &apperr.Malformed{Kind: apperr.UnsupportedVersion, Detail: doc.Version}
	}
	if len(doc.Body.Outlines) == 0 {
		return Document{}, &apperr.Malformed{Kind: apperr.EmptyBody}
	}
	return doc, nil
}

func supported(version string) bool {
	for _, v := range SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}

// Marshal serializes doc with a leading XML declaration.
func Marshal(doc Document) ([]byte, error) {
	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Head != nil {
		h := *d.Head
		out.Head = &h
	}
	out.Body.Outlines = cloneOutlines(d.Body.Outlines)
	return out
}

// IsFolder reports whether the outline groups other outlines rather than
// pointing at a feed.
func (o Outline) IsFolder() bool {
	return o.XMLURL == ""
}

// Clone returns a deep copy of the outline.
func (o Outline) Clone() Outline {
	out := o
	out.Outlines = cloneOutlines(o.Outlines)
	return out
}

func cloneOutlines(in []Outline) []Outline {
	if in == nil {
		return nil
	}
	out := make([]Outline, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// Equal compares every attribute and all children.
func (o Outline) Equal(other Outline) bool {
	if o.Text != other.Text ||
		o.Title != other.Title ||
		o.Description != other.Description ||
		o.Type != other.Type ||
		o.Version != other.Version ||
		o.HTMLURL != other.HTMLURL ||
		o.XMLURL != other.XMLURL ||
		len(o.Outlines) != len(other.Outlines) {
		return false
	}
	for i := range o.Outlines {
		if !o.Outlines[i].Equal(other.Outlines[i]) {
			return false
		}
	}
	return true
}

// Contains reports whether any outline in list is structurally equal to o.
func Contains(list []Outline, o Outline) bool {
	for _, item := range list {
		if item.Equal(o) {
			return true
		}
	}
	return false
}

// FeedEntry represents a flattened subscription with its folder.
type FeedEntry struct {
	Folder string // empty for root subscriptions
	Title  string
	URL    string
}

// Entries returns every subscription in the document in display order.
func Entries(outlines []Outline) []FeedEntry {
	var entries []FeedEntry
	for _, o := range outlines {
		if o.XMLURL != "" {
			entries = append(entries, FeedEntry{Title: o.Text, URL: o.XMLURL})
			continue
		}
		for _, child := range o.Outlines {
			if child.XMLURL == "" {
				continue
			}
			entries = append(entries, FeedEntry{Folder: o.Text, Title: child.Text, URL: child.XMLURL})
		}
	}
	return entries
}
