package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/source"
)

// Committer marks an entry as published in the content source.
// Implementations must be idempotent.
type Committer interface {
	Commit(ctx context.Context, entryID string) error
}

// SourceCommitter commits through the source's SetPublished, stamping the
// current calendar date in loc.
type SourceCommitter struct {
	src source.Provider
	now func() time.Time
	loc *time.Location
}

// NewSourceCommitter creates a SourceCommitter. nil now means time.Now and
// nil loc means time.Local.
func NewSourceCommitter(src source.Provider, now func() time.Time, loc *time.Location) *SourceCommitter {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &SourceCommitter{src: src, now: now, loc: loc}
}

// Commit sets the entry's status to published with today's date.
func (c *SourceCommitter) Commit(ctx context.Context, entryID string) error {
	today := source.DateOnly(c.now(), c.loc)
	if err := c.src.SetPublished(ctx, entryID, today); err != nil {
		return fmt.Errorf("publish: commit: %w", apperr.Source("set_published", entryID, err))
	}
	return nil
}

var _ Committer = (*SourceCommitter)(nil)
