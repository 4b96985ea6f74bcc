package database

import "database/sql"

// InsertRankEntry appends a rank-history entry.
func (db *DB) InsertRankEntry(e *RankHistoryEntry) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO rank_history (listing_ext_id, rank, prev_rank, change, pct_change, spike, severity, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ListingExtID, e.Rank, e.PrevRank, e.Change, e.PctChange,
		boolToInt(e.Spike), e.Severity, formatTime(e.RecordedAt),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LatestRankEntry returns the most recent rank-history entry for a
// listing, or nil if none exists.
func (db *DB) LatestRankEntry(listingExtID string) (*RankHistoryEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, listing_ext_id, rank, prev_rank, change, pct_change, spike, severity, recorded_at
		FROM rank_history WHERE listing_ext_id = ?
		ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		listingExtID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanRankEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// GetRankHistory returns the rank history for a listing, newest first.
func (db *DB) GetRankHistory(listingExtID string, limit int) ([]RankHistoryEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, listing_ext_id, rank, prev_rank, change, pct_change, spike, severity, recorded_at
		FROM rank_history WHERE listing_ext_id = ?
		ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		listingExtID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRankEntries(rows)
}

func scanRankEntries(rows *sql.Rows) ([]RankHistoryEntry, error) {
	var entries []RankHistoryEntry
	for rows.Next() {
		var e RankHistoryEntry
		var spike int
		var recorded string
		if err := rows.Scan(&e.ID, &e.ListingExtID, &e.Rank, &e.PrevRank, &e.Change,
			&e.PctChange, &spike, &e.Severity, &recorded); err != nil {
			return nil, err
		}
		e.Spike = spike != 0
		e.RecordedAt = parseTime(recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
