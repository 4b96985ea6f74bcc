package market

import (
	"fmt"
	"testing"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
)

func TestAnalyzeNicheComputesStats(t *testing.T) {
	db := openTestDB(t)
	a := NewAggregator(db)

	insertListing(t, db, "l1", "Funny Cat Shirt", "cats", 19.99, 10, 40000, 5)
	insertListing(t, db, "l2", "Cute Cat Mug", "cats", 14.99, 30, 50000, 8)
	// Zero price and reviews must not drag the means down.
	insertListing(t, db, "l3", "Cat Poster", "cats", 0, 0, 0, 0)

	agg, err := a.AnalyzeNiche("Cats", 7, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AnalyzeNiche: %v", err)
	}
	if agg.Niche != "cats" {
		t.Errorf("Niche = %q, want cats", agg.Niche)
	}
	if agg.ListingCount != 3 {
		t.Errorf("ListingCount = %d, want 3", agg.ListingCount)
	}
	if agg.GeneratedCount != 7 {
		t.Errorf("GeneratedCount = %d, want 7", agg.GeneratedCount)
	}
	if want := (19.99 + 14.99) / 2; agg.AvgPrice != want {
		t.Errorf("AvgPrice = %.2f, want %.2f", agg.AvgPrice, want)
	}
	if agg.MinPrice != 14.99 || agg.MaxPrice != 19.99 {
		t.Errorf("price range = %.2f..%.2f", agg.MinPrice, agg.MaxPrice)
	}
	if agg.AvgReviews != 20 {
		t.Errorf("AvgReviews = %.1f, want 20", agg.AvgReviews)
	}
	if agg.Saturation != "low" {
		t.Errorf("Saturation = %q, want low", agg.Saturation)
	}
	// low +20, reviews mean 20 is not < 20, no spikes: 70 -> enter.
	if agg.Recommendation != "enter" {
		t.Errorf("Recommendation = %q (score %.0f)", agg.Recommendation, agg.OpportunityScore)
	}

	stored, err := db.GetNicheAggregate("cats")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if stored == nil || stored.ListingCount != 3 {
		t.Errorf("stored aggregate = %+v", stored)
	}
}

func TestAnalyzeNicheKeywordExtraction(t *testing.T) {
	db := openTestDB(t)
	a := NewAggregator(db)

	titles := []string{
		"Vintage Fishing Shirt for the Weekend",
		"Vintage Fishing Mug",
		"Fishing Boat Poster",
	}
	for i, title := range titles {
		insertListing(t, db, fmt.Sprintf("l%d", i), title, "fishing", 20, 10*(3-i), 40000, 5)
	}

	agg, err := a.AnalyzeNiche("fishing", 0, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AnalyzeNiche: %v", err)
	}
	if len(agg.TopKeywords) == 0 || agg.TopKeywords[0] != "fishing" {
		t.Fatalf("TopKeywords = %v, want fishing first", agg.TopKeywords)
	}
	for _, kw := range agg.TopKeywords {
		if kw == "for" || kw == "the" {
			t.Errorf("stop word %q leaked into keywords", kw)
		}
		if kw == "mug" || kw == "shirt" {
			t.Errorf("product word %q leaked into keywords", kw)
		}
	}
}

func TestAnalyzeNichePricePoints(t *testing.T) {
	db := openTestDB(t)
	a := NewAggregator(db)

	prices := []float64{19.99, 19.95, 24.99, 14.99, 19.50}
	for i, p := range prices {
		insertListing(t, db, fmt.Sprintf("l%d", i), fmt.Sprintf("Camping Shirt %d", i), "camping", p, 5, 40000, 5)
	}

	agg, err := a.AnalyzeNiche("camping", 0, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AnalyzeNiche: %v", err)
	}
	if len(agg.PricePoints) == 0 || agg.PricePoints[0] != 20 {
		t.Errorf("PricePoints = %v, want 20 first", agg.PricePoints)
	}
}

func TestAnalyzeNicheDerivedListsUseMostReviewedOnly(t *testing.T) {
	db := openTestDB(t)
	a := NewAggregator(db)

	// 20 well-reviewed listings share a vocabulary and a price point.
	for i := 0; i < 20; i++ {
		insertListing(t, db, fmt.Sprintf("top%d", i), "Alpha Beta Poster", "gamma", 19.99, 100+i, 40000, 5)
	}
	// Unreviewed listings repeat a token often enough to win on raw
	// frequency if they were counted.
	for i := 0; i < 5; i++ {
		insertListing(t, db, fmt.Sprintf("tail%d", i), "Offlist Offlist Offlist Offlist Offlist Poster", "gamma", 9.99, 0, 40000, 5)
	}

	agg, err := a.AnalyzeNiche("gamma", 0, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AnalyzeNiche: %v", err)
	}
	for _, kw := range agg.TopKeywords {
		if kw == "offlist" {
			t.Fatalf("keyword from outside the 20 most-reviewed listings leaked: %v", agg.TopKeywords)
		}
	}
	if len(agg.TopKeywords) == 0 || agg.TopKeywords[0] != "alpha" {
		t.Errorf("TopKeywords = %v, want alpha first", agg.TopKeywords)
	}
	for _, p := range agg.PricePoints {
		if p == 10 {
			t.Errorf("price point from outside the 20 most-reviewed listings leaked: %v", agg.PricePoints)
		}
	}
	// Overall stats still cover the whole niche.
	if agg.ListingCount != 25 {
		t.Errorf("ListingCount = %d, want 25", agg.ListingCount)
	}
}

func TestAnalyzeNicheReportsStructureGaps(t *testing.T) {
	db := openTestDB(t)
	a := NewAggregator(db)
	insertListing(t, db, "l1", "Plain Gardening Shirt", "gardening", 18, 5, 40000, 5)

	// One validated framing for the niche leaves the other three as gaps.
	if _, err := db.UpsertInsight(&database.Insight{
		Type:       "listing-structure",
		PatternKey: "gift-framing",
		Title:      "Title structure: Gift framing",
		Payload:    []byte("{}"),
		Confidence: 0.85,
		Niches:     []string{"gardening"},
	}); err != nil {
		t.Fatalf("seed insight: %v", err)
	}

	agg, err := a.AnalyzeNiche("gardening", 0, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("AnalyzeNiche: %v", err)
	}
	if len(agg.Gaps) != 3 {
		t.Fatalf("Gaps = %v, want 3 uncovered framings", agg.Gaps)
	}
	for _, g := range agg.Gaps {
		if g == "gift-framing" {
			t.Errorf("covered framing reported as gap")
		}
	}
}
