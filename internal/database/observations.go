package database

import (
	"database/sql"
	"time"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// InsertObservation inserts an observation. Returns the ID on success,
// 0 if the external ID already exists.
func (db *DB) InsertObservation(o *Observation) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO observations (ext_id, label, niche, style, tone, approved, sales, engagement, rating, source, origin_query, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ExtID, o.Label, o.Niche, o.Style, o.Tone, boolToInt(o.Approved),
		o.Sales, o.Engagement, o.Rating, o.Source, o.Query, formatTime(o.CreatedAt),
	)
	if err != nil {
		// Duplicate ext_id constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetObservationBatch returns the mining batch: observations no older than
// since that carry some signal (approved, sold, or engaged with), newest
// first, capped at limit.
func (db *DB) GetObservationBatch(since time.Time, limit int) ([]Observation, error) {
	rows, err := db.conn.Query(
		`SELECT id, ext_id, label, niche, style, tone, approved, sales, engagement, rating, source, origin_query, created_at
		FROM observations
		WHERE created_at >= ? AND (approved = 1 OR sales > 0 OR engagement > 0)
		ORDER BY created_at DESC LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// GetObservationByExtID returns a single observation, or nil if absent.
func (db *DB) GetObservationByExtID(extID string) (*Observation, error) {
	row := db.conn.QueryRow(
		`SELECT id, ext_id, label, niche, style, tone, approved, sales, engagement, rating, source, origin_query, created_at
		FROM observations WHERE ext_id = ?`, extID,
	)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CountObservationsByNiche returns per-niche observation counts.
func (db *DB) CountObservationsByNiche() (map[string]int, error) {
	rows, err := db.conn.Query(
		"SELECT niche, COUNT(*) FROM observations GROUP BY niche",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var niche string
		var n int
		if err := rows.Scan(&niche, &n); err != nil {
			return nil, err
		}
		counts[niche] = n
	}
	return counts, rows.Err()
}

func scanObservations(rows *sql.Rows) ([]Observation, error) {
	var obs []Observation
	for rows.Next() {
		var o Observation
		var approved int
		var created string
		if err := rows.Scan(&o.ID, &o.ExtID, &o.Label, &o.Niche, &o.Style, &o.Tone,
			&approved, &o.Sales, &o.Engagement, &o.Rating, &o.Source, &o.Query, &created); err != nil {
			return nil, err
		}
		o.Approved = approved != 0
		o.CreatedAt = parseTime(created)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func scanObservation(row *sql.Row) (*Observation, error) {
	var o Observation
	var approved int
	var created string
	if err := row.Scan(&o.ID, &o.ExtID, &o.Label, &o.Niche, &o.Style, &o.Tone,
		&approved, &o.Sales, &o.Engagement, &o.Rating, &o.Source, &o.Query, &created); err != nil {
		return nil, err
	}
	o.Approved = approved != 0
	o.CreatedAt = parseTime(created)
	return &o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
