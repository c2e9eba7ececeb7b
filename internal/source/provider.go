// Package source defines the content-source port used by the publish pipeline.
package source

import (
	"context"
	"time"

	"github.com/starford/pagefeed/internal/models"
)

// Query is a pre-filter hint for ListEntries. Providers may ignore it; the
// caller's eligibility filter stays authoritative.
type Query struct {
	// ExcludePublished skips entries whose status is already published.
	ExcludePublished bool
	// PublishDateOn keeps entries whose publish date is this day or unset.
	PublishDateOn *time.Time
}

// Match reports whether e passes the hint. Publish dates are calendar
// dates, compared in UTC.
func (q Query) Match(e models.Entry) bool {
	if q.ExcludePublished && e.Published() {
		return false
	}
	if q.PublishDateOn != nil && e.PublishDate != nil && !SameDay(*e.PublishDate, *q.PublishDateOn, time.UTC) {
		return false
	}
	return true
}

// Provider is the interface for content-source operations.
type Provider interface {
	// ListEntries returns entry metadata in source order.
	ListEntries(ctx context.Context, q Query) ([]models.Entry, error)
	// FetchBlocks returns the body of one entry in document order.
	FetchBlocks(ctx context.Context, entryID string) ([]models.ContentNode, error)
	// SetPublished marks an entry published as of at. Setting an already
	// published entry again must succeed and leave it unchanged.
	SetPublished(ctx context.Context, entryID string, at time.Time) error
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight UTC of its calendar date in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
