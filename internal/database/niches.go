package database

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// UpsertNicheAggregate writes the aggregate for a niche, replacing any
// previous row. Aggregates are recomputed from the full current listing
// set each run, so a plain replace keeps the row consistent with the
// latest scrape.
func (db *DB) UpsertNicheAggregate(a *NicheAggregate) error {
	var lastAnalyzed any
	if a.LastAnalyzedAt != nil {
		lastAnalyzed = formatTime(*a.LastAnalyzedAt)
	}
	_, err := db.conn.Exec(
		`INSERT INTO niche_aggregates (niche, generated_count, listing_count, avg_price, min_price, max_price,
			avg_reviews, avg_rating, saturation, recommendation, reason, confidence,
			top_keywords, price_points, top_styles, gaps, opportunity_score, last_analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(niche) DO UPDATE SET
			generated_count = excluded.generated_count,
			listing_count = excluded.listing_count,
			avg_price = excluded.avg_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			avg_reviews = excluded.avg_reviews,
			avg_rating = excluded.avg_rating,
			saturation = excluded.saturation,
			recommendation = excluded.recommendation,
			reason = excluded.reason,
			confidence = excluded.confidence,
			top_keywords = excluded.top_keywords,
			price_points = excluded.price_points,
			top_styles = excluded.top_styles,
			gaps = excluded.gaps,
			opportunity_score = excluded.opportunity_score,
			last_analyzed_at = excluded.last_analyzed_at`,
		strings.ToLower(a.Niche), a.GeneratedCount, a.ListingCount, a.AvgPrice, a.MinPrice, a.MaxPrice,
		a.AvgReviews, a.AvgRating, a.Saturation, a.Recommendation, a.Reason, a.Confidence,
		marshalStrings(a.TopKeywords), marshalFloats(a.PricePoints), marshalStrings(a.TopStyles),
		marshalStrings(a.Gaps), a.OpportunityScore, lastAnalyzed,
	)
	return err
}

// GetNicheAggregate returns the aggregate for a niche, or nil if absent.
func (db *DB) GetNicheAggregate(niche string) (*NicheAggregate, error) {
	rows, err := db.conn.Query(
		selectNicheAggregate+` WHERE niche = ?`, strings.ToLower(niche),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aggs, err := scanNicheAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, nil
	}
	return &aggs[0], nil
}

// ListNicheAggregates returns all aggregates ordered by opportunity score.
func (db *DB) ListNicheAggregates() ([]NicheAggregate, error) {
	rows, err := db.conn.Query(selectNicheAggregate + ` ORDER BY opportunity_score DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNicheAggregates(rows)
}

// IncrementNicheQueryCount bumps the usage counter when a downstream
// consumer retrieves a niche.
func (db *DB) IncrementNicheQueryCount(niche string) error {
	_, err := db.conn.Exec(
		"UPDATE niche_aggregates SET query_count = query_count + 1 WHERE niche = ?",
		strings.ToLower(niche),
	)
	return err
}

const selectNicheAggregate = `SELECT niche, generated_count, listing_count, avg_price, min_price, max_price,
	avg_reviews, avg_rating, saturation, recommendation, reason, confidence,
	top_keywords, price_points, top_styles, gaps, opportunity_score, last_analyzed_at, query_count
	FROM niche_aggregates`

func scanNicheAggregates(rows *sql.Rows) ([]NicheAggregate, error) {
	var aggs []NicheAggregate
	for rows.Next() {
		var a NicheAggregate
		var recommendation, reason sql.NullString
		var keywords, points, styles, gaps, lastAnalyzed sql.NullString
		if err := rows.Scan(&a.Niche, &a.GeneratedCount, &a.ListingCount, &a.AvgPrice,
			&a.MinPrice, &a.MaxPrice, &a.AvgReviews, &a.AvgRating, &a.Saturation,
			&recommendation, &reason, &a.Confidence, &keywords, &points, &styles,
			&gaps, &a.OpportunityScore, &lastAnalyzed, &a.QueryCount); err != nil {
			return nil, err
		}
		a.Recommendation = recommendation.String
		a.Reason = reason.String
		a.TopKeywords = unmarshalStrings(keywords.String)
		a.PricePoints = unmarshalFloats(points.String)
		a.TopStyles = unmarshalStrings(styles.String)
		a.Gaps = unmarshalStrings(gaps.String)
		if lastAnalyzed.Valid {
			t := parseTime(lastAnalyzed.String)
			a.LastAnalyzedAt = &t
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

func marshalFloats(values []float64) string {
	if values == nil {
		values = []float64{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func unmarshalFloats(data string) []float64 {
	if data == "" {
		return nil
	}
	var values []float64
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
