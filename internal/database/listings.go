package database

import (
	"database/sql"
	"strings"
	"time"
)

// InsertListing inserts a listing. Returns the ID on success, 0 if the
// external ID already exists.
func (db *DB) InsertListing(l *Listing) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO listings (ext_id, title, niche, price, reviews, rating, sales_rank, engagement, origin_query, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ExtID, l.Title, strings.ToLower(l.Niche), l.Price, l.Reviews, l.Rating,
		l.SalesRank, l.Engagement, l.Query, formatTime(l.ScrapedAt),
	)
	if err != nil {
		// Duplicate ext_id constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetListingsForNiche returns all current listings for a niche.
func (db *DB) GetListingsForNiche(niche string) ([]Listing, error) {
	rows, err := db.conn.Query(
		selectListing+` WHERE niche = ? ORDER BY scraped_at DESC`,
		strings.ToLower(niche),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// GetListingByExtID returns a single listing, or nil if absent.
func (db *DB) GetListingByExtID(extID string) (*Listing, error) {
	rows, err := db.conn.Query(selectListing+` WHERE ext_id = ?`, extID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	return &listings[0], nil
}

// ListNiches returns the distinct niches present in the listings table.
func (db *DB) ListNiches() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT niche FROM listings ORDER BY niche")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var niches []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		niches = append(niches, n)
	}
	return niches, rows.Err()
}

// GetListingsMatchingBoth returns listings whose title mentions both
// niche terms, the matched set for a fusion pair's combined query.
func (db *DB) GetListingsMatchingBoth(nicheA, nicheB string) ([]Listing, error) {
	rows, err := db.conn.Query(
		selectListing+` WHERE title LIKE ? COLLATE NOCASE AND title LIKE ? COLLATE NOCASE`,
		"%"+nicheA+"%", "%"+nicheB+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// MarkListingSpike flags a listing row after a rank spike was detected,
// for the aggregator's spike-count input.
func (db *DB) MarkListingSpike(extID string, at time.Time, change int) error {
	_, err := db.conn.Exec(
		"UPDATE listings SET spike_at = ?, spike_change = ? WHERE ext_id = ?",
		formatTime(at), change, extID,
	)
	return err
}

// CountSpikingListings counts listings in a niche flagged with a spike
// since the given time.
func (db *DB) CountSpikingListings(niche string, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM listings WHERE niche = ? AND spike_at IS NOT NULL AND spike_at >= ?",
		strings.ToLower(niche), formatTime(since),
	).Scan(&n)
	return n, err
}

const selectListing = `SELECT id, ext_id, title, niche, price, reviews, rating, sales_rank, engagement, origin_query, spike_at, spike_change, scraped_at
	FROM listings`

func scanListings(rows *sql.Rows) ([]Listing, error) {
	var listings []Listing
	for rows.Next() {
		var l Listing
		var spikeAt *string
		var scraped string
		if err := rows.Scan(&l.ID, &l.ExtID, &l.Title, &l.Niche, &l.Price, &l.Reviews,
			&l.Rating, &l.SalesRank, &l.Engagement, &l.Query, &spikeAt, &l.SpikeChange, &scraped); err != nil {
			return nil, err
		}
		if spikeAt != nil {
			t := parseTime(*spikeAt)
			l.SpikeAt = &t
		}
		l.ScrapedAt = parseTime(scraped)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
