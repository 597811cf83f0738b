package catalog

import (
	"database/sql"
	"errors"
)

// Table/index DDL, grounded on original_source/src/fast_diff_py/sqlite_db.py
// (directory/hash/diff table shape, per-rotation hash indexes) and on the
// prepare-then-batch style of other_examples' ScanDir_go scanner.go.
const ddlDirectory = `
CREATE TABLE IF NOT EXISTS directory (
	key        INTEGER PRIMARY KEY,
	path       TEXT NOT NULL,
	filename   TEXT NOT NULL,
	part_b     INTEGER NOT NULL,
	dir_index  INTEGER NOT NULL,
	allowed    INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	created    INTEGER NOT NULL,
	success    INTEGER NOT NULL DEFAULT -1,
	error      TEXT,
	px         INTEGER NOT NULL DEFAULT -1,
	py         INTEGER NOT NULL DEFAULT -1,
	hash_0     INTEGER,
	hash_90    INTEGER,
	hash_180   INTEGER,
	hash_270   INTEGER,
	UNIQUE(path, part_b)
);
CREATE INDEX IF NOT EXISTS idx_directory_part_b  ON directory(part_b);
CREATE INDEX IF NOT EXISTS idx_directory_success ON directory(success);
CREATE INDEX IF NOT EXISTS idx_directory_size_created ON directory(size, created);
CREATE INDEX IF NOT EXISTS idx_directory_hash_0   ON directory(hash_0);
CREATE INDEX IF NOT EXISTS idx_directory_hash_90  ON directory(hash_90);
CREATE INDEX IF NOT EXISTS idx_directory_hash_180 ON directory(hash_180);
CREATE INDEX IF NOT EXISTS idx_directory_hash_270 ON directory(hash_270);
`

const ddlHash = `
CREATE TABLE IF NOT EXISTS hash (
	hash_key    INTEGER PRIMARY KEY,
	hash_string TEXT NOT NULL UNIQUE,
	count       INTEGER NOT NULL DEFAULT 0
);
`

const ddlDiff = `
CREATE TABLE IF NOT EXISTS diff (
	key_a   INTEGER NOT NULL,
	key_b   INTEGER NOT NULL,
	success INTEGER NOT NULL,
	dif     REAL NOT NULL DEFAULT -1,
	error   TEXT,
	PRIMARY KEY (key_a, key_b)
);
CREATE INDEX IF NOT EXISTS idx_diff_key_a ON diff(key_a);
CREATE INDEX IF NOT EXISTS idx_diff_key_b ON diff(key_b);
CREATE INDEX IF NOT EXISTS idx_diff_dif   ON diff(dif);
`

func (s *Store) initSchema() error {
	for _, ddl := range []string{ddlDirectory, ddlHash, ddlDiff} {
		if _, err := s.db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

// CreateDiffTables (re)creates the diff table and its indexes, used when
// starting a fresh second loop (spec.md §4.1).
func (s *Store) CreateDiffTables() error {
	_, err := s.db.Exec(ddlDiff)
	return err
}

// DropDirectoryTable drops the directory table entirely, used by
// retain_progress=false cleanup (spec.md §3 Configuration table).
func (s *Store) DropDirectoryTable() error {
	_, err := s.db.Exec(`DROP TABLE IF EXISTS directory`)
	return err
}

// DirectoryExists reports whether the directory table is present.
func (s *Store) DirectoryExists() (bool, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='directory'`).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
