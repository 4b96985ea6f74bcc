package database

import "time"

// InsertRunReport persists the summary of a mining run.
func (db *DB) InsertRunReport(r *RunReport) error {
	_, err := db.conn.Exec(
		`INSERT INTO run_reports (id, started_at, duration_ms, insights_created, insights_updated, candidates_rejected, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.StartedAt), r.Duration.Milliseconds(),
		r.Created, r.Updated, r.Rejected, marshalStrings(r.Errors),
	)
	return err
}

// GetRecentRuns returns the most recent run reports, newest first.
func (db *DB) GetRecentRuns(limit int) ([]RunReport, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, duration_ms, insights_created, insights_updated, candidates_rejected, errors
		FROM run_reports ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunReport
	for rows.Next() {
		var r RunReport
		var started, errs string
		var durationMs int64
		if err := rows.Scan(&r.ID, &started, &durationMs, &r.Created, &r.Updated, &r.Rejected, &errs); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Errors = unmarshalStrings(errs)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate statistics for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM observations", &s.TotalObservations},
		{"SELECT COUNT(*) FROM listings", &s.TotalListings},
		{"SELECT COUNT(*) FROM insights WHERE is_active = 1", &s.ActiveInsights},
		{"SELECT COUNT(*) FROM niche_aggregates", &s.NicheAggregates},
		{"SELECT COUNT(*) FROM fusion_candidates", &s.FusionCandidates},
		{"SELECT COUNT(*) FROM rank_history", &s.RankHistoryEntries},
		{"SELECT COUNT(*) FROM run_reports", &s.Runs},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
