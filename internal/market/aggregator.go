package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/mining"
)

const (
	maxRankedListings = 20
	maxTopKeywords    = 20
	maxPricePoints    = 5
	maxTopStyles   = 3
)

// stopWords are excluded from title keyword extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "your": true,
	"this": true, "that": true, "are": true, "was": true, "you": true,
	"not": true, "but": true, "his": true, "her": true, "its": true,
	"has": true, "have": true, "from": true, "all": true, "can": true,
	"who": true, "out": true, "get": true, "our": true, "one": true,
	"gift": true, "shirt": true, "tshirt": true, "tee": true, "mug": true,
}

// Aggregator recomputes per-niche market statistics from the full
// current listing set.
type Aggregator struct {
	db *database.DB
}

func NewAggregator(db *database.DB) *Aggregator {
	return &Aggregator{db: db}
}

// AnalyzeNiche rebuilds and persists the aggregate for one niche.
// generatedCount is the number of generated observations known for the
// niche; spikeWindow bounds the recent-spike count feeding the entry
// score.
func (a *Aggregator) AnalyzeNiche(niche string, generatedCount int, now time.Time, spikeWindow time.Duration) (*database.NicheAggregate, error) {
	niche = strings.ToLower(strings.TrimSpace(niche))
	listings, err := a.db.GetListingsForNiche(niche)
	if err != nil {
		return nil, fmt.Errorf("load listings for %q: %w", niche, err)
	}

	// Keyword and price-point extraction read only the most-reviewed
	// listings.
	ranked := topByReviews(listings, maxRankedListings)

	agg := &database.NicheAggregate{
		Niche:          niche,
		GeneratedCount: generatedCount,
		ListingCount:   len(listings),
		Saturation:     saturationLevel(len(listings)),
		TopKeywords:    topKeywords(ranked),
		PricePoints:    topPricePoints(ranked),
	}
	fillPriceStats(agg, listings)

	spiking, err := a.db.CountSpikingListings(niche, now.Add(-spikeWindow))
	if err != nil {
		return nil, fmt.Errorf("count spiking listings for %q: %w", niche, err)
	}

	decision := ScoreEntry(agg.Saturation, agg.AvgReviews, spiking, len(listings))
	agg.Recommendation = decision.Recommendation
	agg.Reason = decision.Reason
	agg.Confidence = decision.Confidence
	agg.OpportunityScore = float64(decision.Score)

	styles, gaps, err := a.styleSignals(niche)
	if err != nil {
		return nil, err
	}
	agg.TopStyles = styles
	agg.Gaps = gaps
	agg.LastAnalyzedAt = &now

	if err := a.db.UpsertNicheAggregate(agg); err != nil {
		return nil, fmt.Errorf("persist aggregate for %q: %w", niche, err)
	}
	return agg, nil
}

// styleSignals pulls the validated style winners for the niche and the
// title framings no validated insight covers yet.
func (a *Aggregator) styleSignals(niche string) ([]string, []string, error) {
	styleInsights, err := a.db.GetTopInsights(mining.TypeStyleEffectiveness, niche, maxTopStyles)
	if err != nil {
		return nil, nil, fmt.Errorf("load style insights for %q: %w", niche, err)
	}
	var styles []string
	for _, in := range styleInsights {
		styles = append(styles, in.Category)
	}

	structural, err := a.db.GetTopInsights(mining.TypeListingStructure, niche, 10)
	if err != nil {
		return nil, nil, fmt.Errorf("load structure insights for %q: %w", niche, err)
	}
	covered := make(map[string]bool)
	for _, in := range structural {
		covered[in.PatternKey] = true
	}
	var gaps []string
	for _, key := range mining.StructureCategoryKeys() {
		if !covered[key] {
			gaps = append(gaps, key)
		}
	}
	return styles, gaps, nil
}

// saturationLevel maps a listing count onto the competition scale.
func saturationLevel(count int) string {
	switch {
	case count > 500:
		return "oversaturated"
	case count > 200:
		return "high"
	case count > 50:
		return "medium"
	case count > 0:
		return "low"
	default:
		return "unknown"
	}
}

// fillPriceStats computes mean/min/max over positive values only, so
// unscraped zero fields cannot drag the stats down.
func fillPriceStats(agg *database.NicheAggregate, listings []database.Listing) {
	var priceSum, ratingSum float64
	var reviewSum, priceN, reviewN, ratingN int
	for _, l := range listings {
		if l.Price > 0 {
			priceSum += l.Price
			priceN++
			if agg.MinPrice == 0 || l.Price < agg.MinPrice {
				agg.MinPrice = l.Price
			}
			if l.Price > agg.MaxPrice {
				agg.MaxPrice = l.Price
			}
		}
		if l.Reviews > 0 {
			reviewSum += l.Reviews
			reviewN++
		}
		if l.Rating > 0 {
			ratingSum += l.Rating
			ratingN++
		}
	}
	if priceN > 0 {
		agg.AvgPrice = priceSum / float64(priceN)
	}
	if reviewN > 0 {
		agg.AvgReviews = float64(reviewSum) / float64(reviewN)
	}
	if ratingN > 0 {
		agg.AvgRating = ratingSum / float64(ratingN)
	}
}

// topByReviews returns the n most-reviewed listings.
func topByReviews(listings []database.Listing, n int) []database.Listing {
	ordered := make([]database.Listing, len(listings))
	copy(ordered, listings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Reviews > ordered[j].Reviews
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}

// topKeywords tokenizes listing titles and returns the most frequent
// meaningful tokens.
func topKeywords(listings []database.Listing) []string {
	var order []string
	counts := make(map[string]int)
	for _, l := range listings {
		for _, word := range strings.Fields(strings.ToLower(l.Title)) {
			word = strings.Trim(word, ".,!?:;\"'()-")
			if len(word) <= 2 || stopWords[word] {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxTopKeywords {
		order = order[:maxTopKeywords]
	}
	return order
}

// topPricePoints rounds prices to whole units and returns the most
// common ones.
func topPricePoints(listings []database.Listing) []float64 {
	var order []int
	counts := make(map[int]int)
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		point := int(l.Price + 0.5)
		if counts[point] == 0 {
			order = append(order, point)
		}
		counts[point]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxPricePoints {
		order = order[:maxPricePoints]
	}
	out := make([]float64, len(order))
	for i, p := range order {
		out[i] = float64(p)
	}
	return out
}
