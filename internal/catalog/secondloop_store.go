package catalog

import (
	"database/sql"

	"github.com/nkazin/difgo/internal/logx"
)

// FetchBlockRows returns the rows for keys in [start, start+length), ordered
// by ascending key, with decoded hash strings and aspect ratios resolved —
// everything a second-loop block needs besides the thumbnail pixels
// themselves (spec.md §4.1 "fetch a contiguous block of rows").
func (s *Store) FetchBlockRows(start int64, length int) ([]BlockRow, error) {
	rows, err := s.db.Query(`
		SELECT d.key, d.path, d.px, d.py,
		       h0.hash_string, h90.hash_string, h180.hash_string, h270.hash_string
		FROM directory d
		LEFT JOIN hash h0   ON h0.hash_key   = d.hash_0
		LEFT JOIN hash h90  ON h90.hash_key  = d.hash_90
		LEFT JOIN hash h180 ON h180.hash_key = d.hash_180
		LEFT JOIN hash h270 ON h270.hash_key = d.hash_270
		WHERE d.key >= ? AND d.key < ?
		ORDER BY d.key ASC
	`, start, start+int64(length))
	if err != nil {
		return nil, wrapStoreErr("fetch block rows", err)
	}
	defer rows.Close()

	var out []BlockRow
	for rows.Next() {
		var (
			b                          BlockRow
			h0, h90, h180, h270        sql.NullString
		)
		if err := rows.Scan(&b.Key, &b.Path, &b.PX, &b.PY, &h0, &h90, &h180, &h270); err != nil {
			return nil, wrapStoreErr("scan block row", err)
		}
		b.Hashes = [4]string{h0.String, h90.String, h180.String, h270.String}
		if b.PY != 0 {
			b.Aspect = float64(b.PX) / float64(b.PY)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate block rows", err)
	}
	return out, nil
}

// InsertDiffOutcomes bulk-inserts computed/short-circuited pairs, ignoring
// (key_a,key_b) conflicts (spec.md §4.1 "conflict = do-nothing"). Callers
// are responsible for the diff_threshold filter and the
// keep_non_matching_aspects filter before calling this (spec.md §4.6).
func (s *Store) InsertDiffOutcomes(outcomes []DiffOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	err := wrapStoreErr("insert diff outcomes", s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO diff (key_a, key_b, success, dif, error)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key_a, key_b) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range outcomes {
			var errMsg sql.NullString
			if o.ErrorMsg != "" {
				errMsg = sql.NullString{String: o.ErrorMsg, Valid: true}
			}
			if _, err := stmt.Exec(o.KeyA, o.KeyB, o.Success, o.Dif, errMsg); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return err
	}
	s.logger.WithFields(logx.Fields{"op": "insert_diff_outcomes", "pairs": len(outcomes)}).Info("committed second-loop block")
	return nil
}

// GetDiffPairs streams (path_a, path_b, dif) tuples with dif < delta,
// ordered by (key_a, key_b), for success=1 rows (and success=2 hash-match
// rows when includeHashMatch is set) — spec.md §6.
//
// Threshold comparison is strict (<), per spec.md §9's resolution of that
// open question.
func (s *Store) GetDiffPairs(delta float32, includeHashMatch bool) ([]DiffPair, error) {
	successFilter := `diff.success = 1`
	if includeHashMatch {
		successFilter = `diff.success IN (1, 2)`
	}
	rows, err := s.db.Query(`
		SELECT da.path, db.path, diff.dif
		FROM diff
		JOIN directory da ON da.key = diff.key_a
		JOIN directory db ON db.key = diff.key_b
		WHERE `+successFilter+` AND diff.dif < ?
		ORDER BY diff.key_a ASC, diff.key_b ASC
	`, delta)
	if err != nil {
		return nil, wrapStoreErr("get diff pairs", err)
	}
	defer rows.Close()

	var out []DiffPair
	for rows.Next() {
		var p DiffPair
		if err := rows.Scan(&p.PathA, &p.PathB, &p.Dif); err != nil {
			return nil, wrapStoreErr("scan diff pair", err)
		}
		out = append(out, p)
	}
	return out, wrapStoreErr("iterate diff pairs", rows.Err())
}

// GetCluster groups diff rows under delta by anchor path (key_a when
// groupA, otherwise key_b), per spec.md §6. Each anchor maps to its peers
// and their dif scores.
func (s *Store) GetCluster(delta float32, groupA bool, includeHashMatch bool) (map[string]map[string]float32, error) {
	successFilter := `diff.success = 1`
	if includeHashMatch {
		successFilter = `diff.success IN (1, 2)`
	}
	anchorCol, peerCol := "key_a", "key_b"
	if !groupA {
		anchorCol, peerCol = "key_b", "key_a"
	}
	rows, err := s.db.Query(`
		SELECT anchor.path, peer.path, diff.dif
		FROM diff
		JOIN directory anchor ON anchor.key = diff.`+anchorCol+`
		JOIN directory peer   ON peer.key   = diff.`+peerCol+`
		WHERE `+successFilter+` AND diff.dif < ?
		ORDER BY diff.`+anchorCol+` ASC, diff.`+peerCol+` ASC
	`, delta)
	if err != nil {
		return nil, wrapStoreErr("get cluster", err)
	}
	defer rows.Close()

	clusters := make(map[string]map[string]float32)
	for rows.Next() {
		var anchor, peer string
		var dif float32
		if err := rows.Scan(&anchor, &peer, &dif); err != nil {
			return nil, wrapStoreErr("scan cluster row", err)
		}
		if clusters[anchor] == nil {
			clusters[anchor] = make(map[string]float32)
		}
		clusters[anchor][peer] = dif
	}
	return clusters, wrapStoreErr("iterate cluster rows", rows.Err())
}

// DropDiffAbove deletes computed (success=1) diff rows with dif > threshold,
// used by the `drop-diff` maintenance operation (spec.md §4.1, §8 scenario
// 6). Failed, hash-match and aspect-mismatch rows are kept.
func (s *Store) DropDiffAbove(threshold float32) error {
	_, err := s.db.Exec(`DELETE FROM diff WHERE success = 1 AND dif > ?`, threshold)
	return wrapStoreErr("drop diff above threshold", err)
}
