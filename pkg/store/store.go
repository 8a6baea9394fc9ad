// Package store provides SQLite-backed persistence for engagements,
// certifications and incidents.
//
// The store enforces the at-most-one-concurrent-writer guarantee the core
// requires: every aggregate row carries a version, saves are conditional on
// the version the caller loaded, and a stale save returns a conflict error
// without mutating anything. Callers reload and retry.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
)

// Store is the SQLite-backed persistence collaborator.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	const op = "store.Open"

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.E(errors.KindInternal, op, "create storage directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "open database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.E(errors.KindInternal, op, "set pragma", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.E(errors.KindInternal, op, "init schema", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS engagements (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		stage TEXT NOT NULL,
		scope TEXT NOT NULL,
		methodology TEXT,
		test_method TEXT,
		lead_personnel TEXT,
		executive_summary TEXT,
		start_date TEXT,
		end_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS findings (
		id TEXT PRIMARY KEY,
		engagement_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		risk_level TEXT NOT NULL,
		cvss_score REAL NOT NULL,
		affected_asset TEXT NOT NULL,
		recommendation TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		resolved_at TEXT,
		FOREIGN KEY (engagement_id) REFERENCES engagements(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS certifications (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		certification_type TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		issued_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		engagement_id TEXT,
		issued_by TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_to TEXT,
		source_threat_id TEXT,
		sla_deadline TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		resolved_at TEXT,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS timeline_entries (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		action TEXT NOT NULL,
		description TEXT,
		performed_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(incident_id, seq),
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_engagements_company ON engagements(company_id);
	CREATE INDEX IF NOT EXISTS idx_findings_engagement ON findings(engagement_id);
	CREATE INDEX IF NOT EXISTS idx_certifications_company ON certifications(company_id);
	CREATE INDEX IF NOT EXISTS idx_certifications_status ON certifications(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_company ON incidents(company_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_timeline_incident ON timeline_entries(incident_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// checkWrite distinguishes a stale-version conflict from a missing row when
// a version-guarded UPDATE touched nothing.
func checkWrite(ctx context.Context, tx *sql.Tx, res sql.Result, table, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.E(errors.KindInternal, op, "rows affected", err)
	}
	if n > 0 {
		return nil
	}

	var version int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM "+table+" WHERE id = ?", id).Scan(&version)
	if err == sql.ErrNoRows {
		return errors.E(errors.KindNotFound, op, fmt.Sprintf("%s row %s not found", table, id))
	}
	if err != nil {
		return errors.E(errors.KindInternal, op, "check existence", err)
	}
	return errors.E(errors.KindConflict, op,
		fmt.Sprintf("%s row %s was modified concurrently (stored version %d)", table, id, version))
}

// timeFormat is the canonical stored timestamp layout.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
