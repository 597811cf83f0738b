package catalog

import (
	"database/sql"

	"github.com/nkazin/difgo/internal/logx"
)

// InsertFiles bulk-inserts candidate file entries discovered by the walker,
// following the prepare-then-exec-in-a-transaction batch style of
// other_examples' ScanDir_go scanner.go flushFiles. On a (path, part_b)
// conflict the existing row's size, created and allowed columns are
// updated instead, so re-indexing the same tree does not duplicate rows.
func (s *Store) InsertFiles(entries []FileEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := wrapStoreErr("insert files", s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO directory (path, filename, part_b, dir_index, allowed, size, created, success, px, py)
			VALUES (?, ?, ?, ?, ?, ?, ?, -1, -1, -1)
			ON CONFLICT(path, part_b) DO UPDATE SET
				size=excluded.size, created=excluded.created, allowed=excluded.allowed
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			partB := 0
			if e.PartB {
				partB = 1
			}
			allowed := 0
			if e.Allowed {
				allowed = 1
			}
			if _, err := stmt.Exec(e.Path, e.Filename, partB, e.DirIndex, allowed, e.Size, e.Created); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return err
	}
	s.logger.WithFields(logx.Fields{"op": "insert_files", "entries": len(entries)}).Info("inserted file entries")
	return nil
}

// Repopulate reassigns dense, zero-indexed keys so that partition A's
// allowed rows occupy [0, |A_allowed|), partition B's allowed rows occupy
// [|A_allowed|, |A_allowed|+|B_allowed|), and disallowed rows follow
// (spec.md §3 "After repopulation..."). SQLite has no UPDATE...FROM
// renumbering primitive, so this rebuilds the table via a temp copy
// ordered exactly as required.
func (s *Store) Repopulate() error {
	err := wrapStoreErr("repopulate", s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TEMP TABLE directory_renum AS
			SELECT * FROM directory
			ORDER BY
				allowed DESC,
				part_b ASC,
				key ASC
		`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM directory`); err != nil {
			return err
		}
		rows, err := tx.Query(`SELECT path, filename, part_b, dir_index, allowed, size, created, success, error, px, py, hash_0, hash_90, hash_180, hash_270 FROM directory_renum`)
		if err != nil {
			return err
		}
		defer rows.Close()

		insert, err := tx.Prepare(`
			INSERT INTO directory (key, path, filename, part_b, dir_index, allowed, size, created, success, error, px, py, hash_0, hash_90, hash_180, hash_270)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer insert.Close()

		var nextKey int64
		for rows.Next() {
			var (
				path, filename                      string
				partB, dirIndex, allowed, success    int
				size, created                        int64
				errMsg                               sql.NullString
				px, py                               int
				h0, h90, h180, h270                  sql.NullInt64
			)
			if err := rows.Scan(&path, &filename, &partB, &dirIndex, &allowed, &size, &created, &success, &errMsg, &px, &py, &h0, &h90, &h180, &h270); err != nil {
				return err
			}
			if _, err := insert.Exec(nextKey, path, filename, partB, dirIndex, allowed, size, created, success, errMsg, px, py, h0, h90, h180, h270); err != nil {
				return err
			}
			nextKey++
		}
		if err := rows.Err(); err != nil {
			return err
		}
		_, err = tx.Exec(`DROP TABLE directory_renum`)
		return err
	}))
	if err != nil {
		return err
	}
	s.logger.WithFields(logx.Fields{"op": "repopulate"}).Info("renumbered directory keys")
	return nil
}
