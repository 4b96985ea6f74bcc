package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
)

// Fusion score tunables.
const (
	fusionBaseScore      = 50
	sparseListingCeiling = 10
	crowdedListingFloor  = 50
	quietEngagement      = 20
	loudEngagement       = 200
	enterEngagementCap   = 50
	rankSignalCeiling    = 100000
)

// FusionScorer rates unordered niche pairs as joint market segments by
// how the marketplace treats listings matching both niches.
type FusionScorer struct {
	db          *database.DB
	minListings int
}

func NewFusionScorer(db *database.DB, minListings int) *FusionScorer {
	return &FusionScorer{db: db, minListings: minListings}
}

// Score evaluates one niche pair and persists the verdict. It returns
// nil without error when too few listings match both niches to judge.
func (s *FusionScorer) Score(nicheA, nicheB, query string, now time.Time) (*database.FusionCandidate, error) {
	nicheA = strings.ToLower(strings.TrimSpace(nicheA))
	nicheB = strings.ToLower(strings.TrimSpace(nicheB))
	if nicheB < nicheA {
		nicheA, nicheB = nicheB, nicheA
	}

	listings, err := s.db.GetListingsMatchingBoth(nicheA, nicheB)
	if err != nil {
		return nil, fmt.Errorf("match listings for %s+%s: %w", nicheA, nicheB, err)
	}
	if len(listings) < s.minListings {
		return nil, nil
	}

	count := len(listings)
	var engagementSum int
	var rankSum, rankN float64
	for _, l := range listings {
		engagementSum += l.Engagement
		if l.SalesRank > 0 {
			rankSum += float64(l.SalesRank)
			rankN++
		}
	}
	avgEngagement := float64(engagementSum) / float64(count)
	var avgRank float64
	if rankN > 0 {
		avgRank = rankSum / rankN
	}

	score := float64(fusionBaseScore)
	if count < sparseListingCeiling {
		score += 25
	} else if count > crowdedListingFloor {
		score -= 20
	}
	if avgEngagement < quietEngagement {
		score += 20
	} else if avgEngagement > loudEngagement {
		score -= 25
	}
	if avgRank > 0 && avgRank < rankSignalCeiling {
		score += 15
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var recommendation string
	switch {
	case count < sparseListingCeiling && avgEngagement < enterEngagementCap:
		recommendation = "enter"
	case count > crowdedListingFloor || avgEngagement > loudEngagement:
		recommendation = "avoid"
	default:
		recommendation = "caution"
	}

	f := &database.FusionCandidate{
		PairKey:        database.FusionPairKey(nicheA, nicheB),
		NicheA:         nicheA,
		NicheB:         nicheB,
		Query:          query,
		ListingCount:   count,
		AvgEngagement:  avgEngagement,
		AvgRank:        avgRank,
		Score:          score,
		Saturation:     saturationLevel(count),
		Recommendation: recommendation,
		ExampleTitle:   listings[0].Title,
		UpdatedAt:      &now,
	}
	if err := s.db.UpsertFusionCandidate(f); err != nil {
		return nil, fmt.Errorf("persist fusion %s: %w", f.PairKey, err)
	}
	return f, nil
}
