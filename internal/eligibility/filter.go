// Package eligibility decides which entries take part in a publish run.
package eligibility

import (
	"fmt"
	"time"

	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/source"
)

// Mode selects the eligibility policy. Modes are alternatives, never combined.
type Mode string

const (
	ModeStatus Mode = "status"
	ModeDate   Mode = "date"
)

// Filter is a predicate over entry metadata.
type Filter interface {
	Eligible(e models.Entry) bool
	Mode() Mode
	// Query is the matching pre-filter hint for the content source.
	Query() source.Query
}

// New returns the filter for mode. now and loc are only used by ModeDate.
func New(mode Mode, now func() time.Time, loc *time.Location) (Filter, error) {
	switch mode {
	case ModeStatus, "":
		return StatusFilter{}, nil
	case ModeDate:
		return NewDateFilter(now, loc), nil
	default:
		return nil, fmt.Errorf("eligibility: unknown mode %q", mode)
	}
}

// StatusFilter admits every entry that is not yet published.
type StatusFilter struct{}

func (StatusFilter) Eligible(e models.Entry) bool { return !e.Published() }

func (StatusFilter) Mode() Mode { return ModeStatus }

func (StatusFilter) Query() source.Query {
	return source.Query{ExcludePublished: true}
}

// DateFilter admits entries whose publish date is today or unset.
type DateFilter struct {
	now func() time.Time
	loc *time.Location
}

// NewDateFilter creates a DateFilter. Nil now means time.Now, nil loc means time.Local.
func NewDateFilter(now func() time.Time, loc *time.Location) DateFilter {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return DateFilter{now: now, loc: loc}
}

func (f DateFilter) today() time.Time {
	return source.DateOnly(f.now(), f.loc)
}

func (f DateFilter) Eligible(e models.Entry) bool {
	if e.PublishDate == nil {
		return true
	}
	return source.SameDay(*e.PublishDate, f.today(), time.UTC)
}

func (DateFilter) Mode() Mode { return ModeDate }

func (f DateFilter) Query() source.Query {
	today := f.today()
	return source.Query{PublishDateOn: &today}
}
