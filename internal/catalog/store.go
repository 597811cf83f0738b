// Package catalog implements the persistent job catalog (spec.md §3, §4.1):
// the directory/hash/diff tables backing both the work queue (claim-batch)
// and the result store (query pairs/clusters), kept logically separate per
// spec.md §9 even though they share one SQLite file.
package catalog

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nkazin/difgo/internal/errs"
	"github.com/nkazin/difgo/internal/logx"
)

// Store owns the single *sql.DB connection used by the orchestrator. Only
// the orchestrator touches it; workers never open their own connections
// (spec.md §5).
type Store struct {
	db     *sql.DB
	path   string
	logger logx.FieldLogger
}

// Open opens (creating if necessary) the SQLite catalog at path and applies
// the pragmas from other_examples' ScanDir_go scanner.go configureDB: WAL
// journaling, a busy timeout so the single-writer orchestrator never hits
// SQLITE_BUSY under its own transactions, synchronous=NORMAL, and
// foreign-key enforcement. logger
// backs the store's claim/commit batch telemetry with structured fields
// (row counts, batch sizes), following the pack's ScannerLogger convention
// (other_examples scanner.go) rather than the orchestrator's plain
// narration strings.
func Open(path string, logger logx.FieldLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &errs.StoreError{Op: "open", Err: err}
	}
	// The orchestrator is the sole writer and runs claim-batch inside a
	// transaction; a single connection avoids cross-connection lock
	// contention entirely.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &errs.StoreError{Op: "pragma", Err: err}
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, &errs.StoreError{Op: "init schema", Err: err}
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the catalog's file path, for cleanup/reporting.
func (s *Store) Path() string { return s.path }

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.StoreError{Op: op, Err: err}
}

// withTx runs fn inside a transaction (the driver's default deferred
// mode), rolling back on error. Used for the claim-batch and bulk-insert paths that must
// be atomic against a concurrent caller (spec.md §4.1); since Store holds
// the only connection (SetMaxOpenConns(1)), this also doubles as difgo's
// in-process mutual exclusion for those operations.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrapStoreErr("begin tx", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit tx", err)
	}
	return nil
}

// Commit is a no-op placeholder kept for symmetry with the orchestrator's
// "commit the store" language (spec.md §2) — SQLite autocommits outside
// withTx, so there is nothing to flush beyond what each bulk operation
// already committed. Present so orchestrator code reads the same as the
// spec's "persist config; commit store" checkpoint pairing.
func (s *Store) Commit() error { return nil }
