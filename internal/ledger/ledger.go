package ledger

import (
	"context"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one publish invocation.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Mode       string     `json:"mode"`
	Items      int        `json:"items"`
	Committed  int        `json:"committed"`
	Error      string     `json:"error,omitempty"`
}

// Publication is the audit record of an entry marked published.
type Publication struct {
	EntryID     string    `json:"entry_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	GUID        string    `json:"guid"`
	RunID       string    `json:"run_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Store defines the ledger operations. Consumers should depend on this
// interface rather than on *DB.
type Store interface {
	StartRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, r Run) error
	RecordPublication(ctx context.Context, p Publication) error
	Publication(ctx context.Context, entryID string) (*Publication, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListPublications(ctx context.Context, limit int) ([]Publication, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
