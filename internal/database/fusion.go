package database

import (
	"database/sql"
	"strings"
	"time"
)

// FusionPairKey returns the canonical key for an unordered niche pair.
func FusionPairKey(nicheA, nicheB string) string {
	a := strings.ToLower(nicheA)
	b := strings.ToLower(nicheB)
	if b < a {
		a, b = b, a
	}
	return a + "+" + b
}

// UpsertFusionCandidate writes a fusion candidate keyed by its unordered
// pair, incrementing the validation counter on refresh.
func (db *DB) UpsertFusionCandidate(f *FusionCandidate) error {
	now := time.Now().UTC()
	_, err := db.conn.Exec(
		`INSERT INTO fusion_candidates (pair_key, niche_a, niche_b, combined_query, listing_count,
			avg_engagement, avg_rank, score, saturation, recommendation, example_title, times_validated, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(pair_key) DO UPDATE SET
			combined_query = excluded.combined_query,
			listing_count = excluded.listing_count,
			avg_engagement = excluded.avg_engagement,
			avg_rank = excluded.avg_rank,
			score = excluded.score,
			saturation = excluded.saturation,
			recommendation = excluded.recommendation,
			example_title = excluded.example_title,
			times_validated = fusion_candidates.times_validated + 1,
			updated_at = excluded.updated_at`,
		f.PairKey, strings.ToLower(f.NicheA), strings.ToLower(f.NicheB), f.Query,
		f.ListingCount, f.AvgEngagement, f.AvgRank, f.Score, f.Saturation,
		f.Recommendation, f.ExampleTitle, formatTime(now),
	)
	return err
}

// GetFusionCandidate returns the candidate for an unordered pair, or nil.
func (db *DB) GetFusionCandidate(nicheA, nicheB string) (*FusionCandidate, error) {
	rows, err := db.conn.Query(
		selectFusion+` WHERE pair_key = ?`, FusionPairKey(nicheA, nicheB),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates, err := scanFusionCandidates(rows)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// GetFusionForNiche returns fusion candidates touching a niche, ordered by
// score. Candidates marked avoid are excluded: downstream consumers only
// want pairs worth acting on.
func (db *DB) GetFusionForNiche(niche string) ([]FusionCandidate, error) {
	n := strings.ToLower(niche)
	rows, err := db.conn.Query(
		selectFusion+` WHERE (niche_a = ? OR niche_b = ?) AND recommendation != 'avoid'
		ORDER BY score DESC`,
		n, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFusionCandidates(rows)
}

// ListFusionCandidates returns all fusion candidates ordered by score.
func (db *DB) ListFusionCandidates() ([]FusionCandidate, error) {
	rows, err := db.conn.Query(selectFusion + ` ORDER BY score DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFusionCandidates(rows)
}

const selectFusion = `SELECT pair_key, niche_a, niche_b, combined_query, listing_count,
	avg_engagement, avg_rank, score, saturation, recommendation, example_title, times_validated, updated_at
	FROM fusion_candidates`

func scanFusionCandidates(rows *sql.Rows) ([]FusionCandidate, error) {
	var candidates []FusionCandidate
	for rows.Next() {
		var f FusionCandidate
		var query, saturation, recommendation, example, updated sql.NullString
		if err := rows.Scan(&f.PairKey, &f.NicheA, &f.NicheB, &query, &f.ListingCount,
			&f.AvgEngagement, &f.AvgRank, &f.Score, &saturation, &recommendation,
			&example, &f.TimesValidated, &updated); err != nil {
			return nil, err
		}
		f.Query = query.String
		f.Saturation = saturation.String
		f.Recommendation = recommendation.String
		f.ExampleTitle = example.String
		if updated.Valid {
			t := parseTime(updated.String)
			f.UpdatedAt = &t
		}
		candidates = append(candidates, f)
	}
	return candidates, rows.Err()
}
