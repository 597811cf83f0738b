package catalog

import (
	"database/sql"

	"github.com/nkazin/difgo/internal/logx"
)

// ClaimBatch atomically selects up to n allowed, queued (success=-1) rows in
// ascending key order and marks them claimed (success=-2), returning them
// for dispatch to first-loop workers. Ordering by ascending key makes
// resume deterministic (spec.md §4.1, §4.5).
//
// Atomicity is provided by withTx: since Store holds the catalog's only
// connection, the select-then-update pair below can never interleave with
// another ClaimBatch call.
func (s *Store) ClaimBatch(n int) ([]ClaimedFile, error) {
	if n <= 0 {
		return nil, nil
	}
	var claimed []ClaimedFile
	err := s.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT key, path FROM directory
			WHERE allowed = 1 AND success = ?
			ORDER BY key ASC
			LIMIT ?
		`, FileQueued, n)
		if err != nil {
			return err
		}
		var keys []int64
		for rows.Next() {
			var c ClaimedFile
			if err := rows.Scan(&c.Key, &c.Path); err != nil {
				rows.Close()
				return err
			}
			claimed = append(claimed, c)
			keys = append(keys, c.Key)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(keys) == 0 {
			return nil
		}
		upd, err := tx.Prepare(`UPDATE directory SET success = ? WHERE key = ?`)
		if err != nil {
			return err
		}
		defer upd.Close()
		for _, k := range keys {
			if _, err := upd.Exec(FileClaimed, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("claim batch", err)
	}
	s.logger.WithFields(logx.Fields{"op": "claim_batch", "requested": n, "claimed": len(claimed)}).Info("claimed first-loop batch")
	return claimed, nil
}

// ResetClaimed normalizes any success=-2 (claimed but never finished, e.g.
// after a crash or SIGINT) rows back to -1 (queued), per spec.md §4.5/§5
// resume semantics. Returns the number of rows reset.
func (s *Store) ResetClaimed() (int, error) {
	var n int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE directory SET success = ? WHERE success = ?`, FileQueued, FileClaimed)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, wrapStoreErr("reset claimed", err)
	}
	if n > 0 {
		s.logger.WithFields(logx.Fields{"op": "reset_claimed", "reset": n}).Info("reset claimed rows for resume")
	}
	return int(n), nil
}

// UpsertHash inserts a hash string or increments its reference count if it
// already exists, returning the row's hash_key (spec.md §3 Hash entry,
// §4.1 "hash upsert: insert-or-increment by hash string").
func (s *Store) UpsertHash(tx *sql.Tx, hashString string) (int64, error) {
	if _, err := tx.Exec(`
		INSERT INTO hash (hash_string, count) VALUES (?, 1)
		ON CONFLICT(hash_string) DO UPDATE SET count = count + 1
	`, hashString); err != nil {
		return 0, err
	}
	// LastInsertId is unreliable on the ON CONFLICT path (it still reports
	// the previous insert's rowid), so always look the row up.
	var key int64
	err := tx.QueryRow(`SELECT hash_key FROM hash WHERE hash_string = ?`, hashString).Scan(&key)
	return key, err
}

// RecordPreprocessResults bulk-applies first-loop outcomes: hashes are
// upserted first so their foreign keys resolve before the directory rows
// reference them (spec.md §4.5 "upserting hashes first so fk's resolve").
// Returns the ok/failed counts within this batch for the caller's running
// totals.
func (s *Store) RecordPreprocessResults(updates []PreprocessUpdate) (int, int, error) {
	if len(updates) == 0 {
		return 0, 0, nil
	}
	var ok, failed int
	err := wrapStoreErr("record preprocess results", s.withTx(func(tx *sql.Tx) error {
		updFail, err := tx.Prepare(`UPDATE directory SET success = ?, error = ? WHERE key = ?`)
		if err != nil {
			return err
		}
		defer updFail.Close()

		updOK, err := tx.Prepare(`
			UPDATE directory
			SET success = ?, px = ?, py = ?, hash_0 = ?, hash_90 = ?, hash_180 = ?, hash_270 = ?
			WHERE key = ?
		`)
		if err != nil {
			return err
		}
		defer updOK.Close()

		for _, u := range updates {
			if !u.OK {
				if _, err := updFail.Exec(FileFailed, u.ErrorMsg, u.Key); err != nil {
					return err
				}
				failed++
				continue
			}

			var hashKeys [4]sql.NullInt64
			if u.HasHash {
				for i, h := range u.Hashes {
					key, err := s.UpsertHash(tx, h)
					if err != nil {
						return err
					}
					hashKeys[i] = sql.NullInt64{Int64: key, Valid: true}
				}
			}
			if _, err := updOK.Exec(FileDone, u.PX, u.PY, hashKeys[0], hashKeys[1], hashKeys[2], hashKeys[3], u.Key); err != nil {
				return err
			}
			ok++
		}
		return nil
	}))
	if err != nil {
		return 0, 0, err
	}
	s.logger.WithFields(logx.Fields{"op": "record_preprocess_results", "ok": ok, "failed": failed}).Info("committed first-loop batch")
	return ok, failed, nil
}

// CountByPartition returns the number of rows in the given partition,
// optionally restricted to allowed rows only (spec.md §4.1).
func (s *Store) CountByPartition(partB bool, allowedOnly bool) (int, error) {
	pb := 0
	if partB {
		pb = 1
	}
	query := `SELECT COUNT(*) FROM directory WHERE part_b = ?`
	if allowedOnly {
		query += ` AND allowed = 1`
	}
	var n int
	err := s.db.QueryRow(query, pb).Scan(&n)
	if err != nil {
		return 0, wrapStoreErr("count by partition", err)
	}
	return n, nil
}
