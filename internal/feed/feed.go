// Package feed fetches per-channel Atom feeds and exposes their entries in
// document order.
package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// UnknownAuthor is used when an entry carries no author.
const UnknownAuthor = "Unknown"

var (
	ErrTimeout   = errors.New("feed request timed out")
	ErrStatus    = errors.New("feed request returned unexpected status")
	ErrMalformed = errors.New("feed document is malformed")
)

// FetchError reports a failed fetch for one source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Document is a parsed feed.
type Document struct {
	Source  string
	Title   string
	Entries []Entry
}

// Entry is one feed entry. ID is the compound id (e.g. "yt:video:<id>") and
// Published the raw wire timestamp.
type Entry struct {
	ID        string
	Title     string
	Link      string
	Published string
	Author    string
}

func newDocument(source string, parsed *gofeed.Feed) *Document {
	doc := &Document{
		Source:  source,
		Title:   strings.TrimSpace(parsed.Title),
		Entries: make([]Entry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		doc.Entries = append(doc.Entries, Entry{
			ID:        strings.TrimSpace(item.GUID),
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: strings.TrimSpace(item.Published),
			Author:    authorName(item),
		})
	}
	return doc
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return strings.TrimSpace(author.Name)
		}
	}
	return UnknownAuthor
}
