package api

import (
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/models"
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error" validate:"required"`
}

// EntryListResponse wraps the entries the next run would publish.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries" validate:"required"`
	Total   int            `json:"total" example:"3" validate:"required"`
}

// PublishResponse summarizes a triggered run.
type PublishResponse struct {
	RunID     string   `json:"run_id" example:"5f0c..." validate:"required"`
	Items     int      `json:"items" example:"3" validate:"required"`
	Committed []string `json:"committed" validate:"required"`
	Skipped   int      `json:"skipped" example:"0"`
}

// PublishErrorResponse is returned when a run aborts. Committed lists
// entries marked published before the abort.
type PublishErrorResponse struct {
	Error     string   `json:"error" validate:"required"`
	Committed []string `json:"committed,omitempty"`
}

// RunListResponse wraps recorded runs.
type RunListResponse struct {
	Runs []ledger.Run `json:"runs" validate:"required"`
}

// PublicationListResponse wraps recorded publications.
type PublicationListResponse struct {
	Publications []ledger.Publication `json:"publications" validate:"required"`
}
