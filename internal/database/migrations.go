package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ext_id TEXT UNIQUE NOT NULL,
    label TEXT NOT NULL,
    niche TEXT NOT NULL,
    style TEXT,
    tone TEXT,
    approved INTEGER DEFAULT 0,
    sales INTEGER DEFAULT 0,
    engagement INTEGER DEFAULT 0,
    rating REAL,
    source TEXT NOT NULL DEFAULT 'generated',
    origin_query TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ext_id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    niche TEXT NOT NULL,
    price REAL DEFAULT 0,
    reviews INTEGER DEFAULT 0,
    rating REAL DEFAULT 0,
    sales_rank INTEGER DEFAULT 0,
    engagement INTEGER DEFAULT 0,
    origin_query TEXT,
    spike_at TEXT,
    spike_change INTEGER,
    scraped_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    insight_type TEXT NOT NULL,
    pattern_key TEXT NOT NULL,
    category TEXT,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    payload TEXT,
    sample_size INTEGER DEFAULT 0,
    confidence REAL DEFAULT 0,
    success_rate REAL DEFAULT 0,
    niches TEXT,
    timeframe TEXT,
    risk TEXT,
    observation_ids TEXT,
    times_validated INTEGER DEFAULT 1,
    last_validated_at TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(insight_type, pattern_key)
);

CREATE TABLE IF NOT EXISTS niche_aggregates (
    niche TEXT PRIMARY KEY,
    generated_count INTEGER DEFAULT 0,
    listing_count INTEGER DEFAULT 0,
    avg_price REAL DEFAULT 0,
    min_price REAL DEFAULT 0,
    max_price REAL DEFAULT 0,
    avg_reviews REAL DEFAULT 0,
    avg_rating REAL DEFAULT 0,
    saturation TEXT DEFAULT 'unknown',
    recommendation TEXT,
    reason TEXT,
    confidence INTEGER DEFAULT 0,
    top_keywords TEXT,
    price_points TEXT,
    top_styles TEXT,
    gaps TEXT,
    opportunity_score REAL DEFAULT 0,
    last_analyzed_at TEXT,
    query_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rank_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    listing_ext_id TEXT NOT NULL,
    rank INTEGER NOT NULL,
    prev_rank INTEGER,
    change INTEGER DEFAULT 0,
    pct_change REAL DEFAULT 0,
    spike INTEGER DEFAULT 0,
    severity TEXT DEFAULT '',
    recorded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fusion_candidates (
    pair_key TEXT PRIMARY KEY,
    niche_a TEXT NOT NULL,
    niche_b TEXT NOT NULL,
    combined_query TEXT,
    listing_count INTEGER DEFAULT 0,
    avg_engagement REAL DEFAULT 0,
    avg_rank REAL DEFAULT 0,
    score REAL DEFAULT 0,
    saturation TEXT,
    recommendation TEXT,
    example_title TEXT,
    times_validated INTEGER DEFAULT 1,
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS run_reports (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    insights_created INTEGER DEFAULT 0,
    insights_updated INTEGER DEFAULT 0,
    candidates_rejected INTEGER DEFAULT 0,
    errors TEXT
);

CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at);
CREATE INDEX IF NOT EXISTS idx_observations_niche ON observations(niche);
CREATE INDEX IF NOT EXISTS idx_listings_niche ON listings(niche);
CREATE INDEX IF NOT EXISTS idx_insights_type ON insights(insight_type);
CREATE INDEX IF NOT EXISTS idx_insights_confidence ON insights(confidence);
CREATE INDEX IF NOT EXISTS idx_rank_history_listing ON rank_history(listing_ext_id, recorded_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
