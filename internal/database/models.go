package database

import (
	"encoding/json"
	"time"
)

// Observation is one historical record used as mining evidence: a
// generated artifact or a scraped listing, with its success signals.
// CreatedAt is immutable and is the sole basis for temporal partitioning.
type Observation struct {
	ID         int64
	ExtID      string
	Label      string
	Niche      string
	Style      *string
	Tone       *string
	Approved   bool
	Sales      int
	Engagement int
	Rating     *float64
	Source     string // "generated" or "listing"
	Query      *string
	CreatedAt  time.Time
}

// Listing is a scraped marketplace listing.
type Listing struct {
	ID          int64
	ExtID       string
	Title       string
	Niche       string
	Price       float64
	Reviews     int
	Rating      float64
	SalesRank   int
	Engagement  int
	Query       *string
	SpikeAt     *time.Time
	SpikeChange *int
	ScrapedAt   time.Time
}

// Insight is a persisted, validated, confidence-scored pattern. One row
// exists per (Type, PatternKey); re-validation refreshes the row in place.
type Insight struct {
	ID              int64
	Type            string
	PatternKey      string
	Category        string
	Title           string
	Description     string
	Payload         json.RawMessage
	SampleSize      int
	Confidence      float64
	SuccessRate     float64
	Niches          []string
	Timeframe       string
	Risk            string
	ObservationIDs  []string
	TimesValidated  int
	LastValidatedAt *time.Time
	IsActive        bool
	CreatedAt       *time.Time
}

// NicheAggregate holds rolling descriptive statistics for one niche,
// recomputed from the full current listing set on every run.
type NicheAggregate struct {
	Niche            string
	GeneratedCount   int
	ListingCount     int
	AvgPrice         float64
	MinPrice         float64
	MaxPrice         float64
	AvgReviews       float64
	AvgRating        float64
	Saturation       string
	Recommendation   string
	Reason           string
	Confidence       int
	TopKeywords      []string
	PricePoints      []float64
	TopStyles        []string
	Gaps             []string
	OpportunityScore float64
	LastAnalyzedAt   *time.Time
	QueryCount       int
}

// RankHistoryEntry records one sales-rank observation for a listing.
// Append-only; at most one entry per listing within the dedup window.
type RankHistoryEntry struct {
	ID           int64
	ListingExtID string
	Rank         int
	PrevRank     *int
	Change       int
	PctChange    float64
	Spike        bool
	Severity     string // "", "minor", "major", "viral"
	RecordedAt   time.Time
}

// FusionCandidate scores an unordered niche pair as a joint market
// segment. PairKey is the sorted "a+b" identity.
type FusionCandidate struct {
	PairKey        string
	NicheA         string
	NicheB         string
	Query          string
	ListingCount   int
	AvgEngagement  float64
	AvgRank        float64
	Score          float64
	Saturation     string
	Recommendation string
	ExampleTitle   string
	TimesValidated int
	UpdatedAt      *time.Time
}

// RunReport holds the structured summary of one mining run.
type RunReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Created   int
	Updated   int
	Rejected  int
	Errors    []string
}

// Stats contains aggregate database statistics for the status command.
type Stats struct {
	TotalObservations  int
	TotalListings      int
	ActiveInsights     int
	NicheAggregates    int
	FusionCandidates   int
	RankHistoryEntries int
	Runs               int
}
