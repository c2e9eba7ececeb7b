package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/pagefeed/internal/apperr"
)

const defaultLimit = 50

// StartRun inserts a run row in the running state.
func (db *DB) StartRun(ctx context.Context, r Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO runs (id, started_at, status, mode)
		VALUES (?, ?, ?, ?)
	`), r.ID, r.StartedAt.UTC(), r.Status, r.Mode)
	if err != nil {
		return fmt.Errorf("ledger: start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (db *DB) FinishRun(ctx context.Context, r Run) error {
	finished := time.Now().UTC()
	if r.FinishedAt != nil {
		finished = r.FinishedAt.UTC()
	}
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE runs
		SET finished_at = ?, status = ?, items = ?, committed = ?, error = ?
		WHERE id = ?
	`), finished, r.Status, r.Items, r.Committed, r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: finish run %s: %w", r.ID, apperr.ErrNotFound)
	}
	return nil
}

// RecordPublication stores p unless the entry was already recorded; the
// first record wins so repeated commits are harmless.
func (db *DB) RecordPublication(ctx context.Context, p Publication) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO publications (entry_id, title, link, guid, run_id, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entry_id) DO NOTHING
	`), p.EntryID, p.Title, p.Link, p.GUID, p.RunID, p.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("ledger: record publication: %w", err)
	}
	return nil
}

// Publication returns the record for entryID or apperr.ErrNotFound.
func (db *DB) Publication(ctx context.Context, entryID string) (*Publication, error) {
	var p Publication
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT entry_id, title, link, guid, run_id, published_at
		FROM publications WHERE entry_id = ?
	`), entryID).Scan(&p.EntryID, &p.Title, &p.Link, &p.GUID, &p.RunID, &p.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get publication: %w", err)
	}
	return &p, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT id, started_at, finished_at, status, mode, items, committed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &r.Mode, &r.Items, &r.Committed, &r.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPublications returns the most recent publications first.
func (db *DB) ListPublications(ctx context.Context, limit int) ([]Publication, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT entry_id, title, link, guid, run_id, published_at
		FROM publications
		ORDER BY published_at DESC, entry_id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list publications: %w", err)
	}
	defer rows.Close()

	var out []Publication
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.EntryID, &p.Title, &p.Link, &p.GUID, &p.RunID, &p.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
