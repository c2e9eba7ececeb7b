package api

import (
	"context"

	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/publish"
)

// Publisher is the pipeline surface the API drives.
type Publisher interface {
	Run(ctx context.Context) (publish.Result, error)
	Preview(ctx context.Context) (publish.Result, error)
	Eligible(ctx context.Context) ([]models.Entry, error)
}

// History is the read side of the run ledger.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]ledger.Run, error)
	ListPublications(ctx context.Context, limit int) ([]ledger.Publication, error)
}

var (
	_ Publisher = (*publish.Publisher)(nil)
	_ History   = (*ledger.DB)(nil)
)
