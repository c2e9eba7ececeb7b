// Package ledger keeps an audit trail of publish runs and published
// entries in SQLite or PostgreSQL.
//
// The content source stays the authority on what is published; the ledger
// only records what this process did.
package ledger

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL DEFAULT 'running',
	mode        TEXT NOT NULL DEFAULT '',
	items       INTEGER NOT NULL DEFAULT 0,
	committed   INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS publications (
	entry_id     TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	link         TEXT NOT NULL DEFAULT '',
	guid         TEXT NOT NULL DEFAULT '',
	run_id       TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_publications_run ON publications(run_id);
`

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
