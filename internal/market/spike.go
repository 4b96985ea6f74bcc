package market

import (
	"fmt"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
)

// rankDedupWindow suppresses repeat rank recordings for a listing.
const rankDedupWindow = time.Hour

// Spike severity thresholds on fractional rank improvement.
const (
	viralImprovement = 0.50
	majorImprovement = 0.25
	minorImprovement = 0.10
)

// SpikeResult describes what recording one rank observation did.
type SpikeResult struct {
	Deduped  bool
	Spike    bool
	Severity string
	Entry    *database.RankHistoryEntry
}

// SpikeDetector tracks listing sales ranks and flags sudden improvements.
type SpikeDetector struct {
	db *database.DB
}

func NewSpikeDetector(db *database.DB) *SpikeDetector {
	return &SpikeDetector{db: db}
}

// Record appends a rank observation for the listing. A first sighting is
// recorded without spike judgment; later sightings are compared against
// the previous rank. Observations inside the dedup window are dropped.
func (d *SpikeDetector) Record(listingExtID string, rank int, now time.Time) (*SpikeResult, error) {
	prev, err := d.db.LatestRankEntry(listingExtID)
	if err != nil {
		return nil, fmt.Errorf("load rank history for %q: %w", listingExtID, err)
	}
	if prev != nil && now.Sub(prev.RecordedAt) < rankDedupWindow {
		return &SpikeResult{Deduped: true}, nil
	}

	entry := &database.RankHistoryEntry{
		ListingExtID: listingExtID,
		Rank:         rank,
		RecordedAt:   now,
	}

	if prev != nil {
		prevRank := prev.Rank
		entry.PrevRank = &prevRank
		entry.Change = prevRank - rank
		if prevRank > 0 {
			entry.PctChange = float64(prevRank-rank) / float64(prevRank)
		}
		entry.Spike, entry.Severity = classifySpike(entry.PctChange)
	}

	if _, err := d.db.InsertRankEntry(entry); err != nil {
		return nil, fmt.Errorf("record rank for %q: %w", listingExtID, err)
	}

	if entry.Spike {
		if err := d.db.MarkListingSpike(listingExtID, now, entry.Change); err != nil {
			return nil, fmt.Errorf("flag spike on %q: %w", listingExtID, err)
		}
	}

	return &SpikeResult{Spike: entry.Spike, Severity: entry.Severity, Entry: entry}, nil
}

// classifySpike grades a fractional rank improvement. A worse or flat
// rank is never a spike.
func classifySpike(improvement float64) (bool, string) {
	switch {
	case improvement > viralImprovement:
		return true, "viral"
	case improvement > majorImprovement:
		return true, "major"
	case improvement > minorImprovement:
		return true, "minor"
	default:
		return false, ""
	}
}
