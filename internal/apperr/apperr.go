// Package apperr defines the closed set of errors surfaced to the user.
package apperr

import (
	"errors"
	"fmt"
)

// AlreadyExists reports an add, rename or move that collides with an
// existing account, folder or subscription.
type AlreadyExists struct {
	Action string
	Item   string
	Reason string
}

func (e *AlreadyExists) Error() string {
	return fmt.Sprintf("%s \"%s\". %s", e.Action, e.Item, e.Reason)
}

// NotFound reports a lookup that missed.
type NotFound struct {
	Action string
	Item   string
	Reason string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s \"%s\". %s", e.Action, e.Item, e.Reason)
}

// InvalidName reports a name that cannot identify an account.
type InvalidName struct {
	Action string
	Item   string
	Reason string
}

func (e *InvalidName) Error() string {
	return fmt.Sprintf("%s \"%s\". %s", e.Action, e.Item, e.Reason)
}

// IO wraps a filesystem failure during import or export.
type IO struct {
	Op   string
	Path string
	Err  error
}

func (e *IO) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IO) Unwrap() error { return e.Err }

// MalformedKind classifies a document that could not be used.
type MalformedKind int

const (
	BadXML MalformedKind = iota
	UnsupportedVersion
	EmptyBody
	BadFeed
)

// Malformed reports an OPML or feed document that failed to parse or
// validate.
type Malformed struct {
	Kind   MalformedKind
	Detail string
	Err    error
}

func (e *Malformed) Error() string {
	switch e.Kind {
	case UnsupportedVersion:
		return fmt.Sprintf("Unsupported OPML version: %q", e.Detail)
	case EmptyBody:
		return "OPML body has no <outline> elements"
	case BadFeed:
		return fmt.Sprintf("Failed to parse feed: %v", e.Err)
	default:
		return "Failed to process XML file"
	}
}

func (e *Malformed) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is, or wraps, an AlreadyExists.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExists
	return errors.As(err, &target)
}

// IsNotFound reports whether err is, or wraps, a NotFound.
func IsNotFound(err error) bool {
	var target *NotFound
	return errors.As(err, &target)
}

// IsInvalidName reports whether err is, or wraps, an InvalidName.
func IsInvalidName(err error) bool {
	var target *InvalidName
	return errors.As(err, &target)
}

// IsMalformed reports whether err is a Malformed of the given kind.
func IsMalformed(err error, kind MalformedKind) bool {
	var target *Malformed
	return errors.As(err, &target) && target.Kind == kind
}
