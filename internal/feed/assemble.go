// Package feed turns rendered entries into a syndication document and
// serializes it.
package feed

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pagefeed/internal/models"
)

// DefaultTitle is used for entries without a usable title.
const DefaultTitle = "No Title"

// DefaultLinkBase builds fallback links when an entry has no canonical URL.
const DefaultLinkBase = "https://www.notion.so"

var guidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/starford/pagefeed/items"))

// Assembler packages an entry and its rendered body into a FeedItem.
type Assembler struct {
	linkBase string
	now      func() time.Time
}

// NewAssembler creates an Assembler. Empty linkBase means DefaultLinkBase,
// nil now means time.Now.
func NewAssembler(linkBase string, now func() time.Time) *Assembler {
	linkBase = strings.TrimRight(strings.TrimSpace(linkBase), "/")
	if linkBase == "" {
		linkBase = DefaultLinkBase
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{linkBase: linkBase, now: now}
}

// Assemble builds the feed item for e. The item is stamped with the
// current time; historical publish times are not recovered.
func (a *Assembler) Assemble(e models.Entry, body string) models.FeedItem {
	return models.FeedItem{
		Title:       itemTitle(e),
		Link:        a.Link(e),
		GUID:        GUID(e.ID),
		BodyMarkup:  body,
		Category:    strings.TrimSpace(e.Category),
		PublishedAt: a.now().UTC(),
	}
}

// Link returns the canonical URL of e or a link derived from its ID.
func (a *Assembler) Link(e models.Entry) string {
	if u := strings.TrimSpace(e.CanonicalURL); u != "" {
		return u
	}
	return a.linkBase + "/" + linkPath(e.ID)
}

func itemTitle(e models.Entry) string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// linkPath renders an entry ID as a URL path. UUID-shaped IDs are written
// without dashes, the way page URLs spell them.
func linkPath(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return strings.ReplaceAll(parsed.String(), "-", "")
	}
	segments := strings.Split(strings.TrimSuffix(id, ".md"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// GUID returns a stable item identifier for an entry ID.
func GUID(entryID string) string {
	return "urn:uuid:" + uuid.NewSHA1(guidNamespace, []byte(entryID)).String()
}
