package market

import (
	"fmt"
	"testing"
	"time"
)

func TestFusionScorerNeedsMinimumListings(t *testing.T) {
	db := openTestDB(t)
	s := NewFusionScorer(db, 3)

	insertListing(t, db, "l1", "Cat Yoga Mat", "cat", 20, 5, 50000, 10)
	insertListing(t, db, "l2", "Yoga Cat Poster", "yoga", 15, 2, 60000, 8)

	f, err := s.Score("cat", "yoga", "cat yoga", time.Now().UTC())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if f != nil {
		t.Errorf("scored with 2 matches: %+v", f)
	}
}

func TestFusionScorerEnterVerdict(t *testing.T) {
	db := openTestDB(t)
	s := NewFusionScorer(db, 3)

	// 4 quiet matches with meaningful ranks: 50 +25 +20 +15 = 100.
	for i := 0; i < 4; i++ {
		insertListing(t, db, fmt.Sprintf("l%d", i), fmt.Sprintf("Cat Yoga Shirt %d", i), "cat", 18, 3, 40000, 10)
	}

	now := time.Now().UTC()
	f, err := s.Score("yoga", "cat", "cat yoga", now)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if f == nil {
		t.Fatal("no candidate scored")
	}
	if f.PairKey != "cat+yoga" {
		t.Errorf("PairKey = %q, want cat+yoga", f.PairKey)
	}
	if f.NicheA != "cat" || f.NicheB != "yoga" {
		t.Errorf("niches = %s/%s, want cat/yoga", f.NicheA, f.NicheB)
	}
	if f.Score != 100 {
		t.Errorf("Score = %.0f, want 100", f.Score)
	}
	if f.Recommendation != "enter" {
		t.Errorf("Recommendation = %q, want enter", f.Recommendation)
	}
	if f.ListingCount != 4 {
		t.Errorf("ListingCount = %d, want 4", f.ListingCount)
	}

	stored, err := db.GetFusionCandidate("cat", "yoga")
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if stored == nil || stored.Score != 100 {
		t.Errorf("stored candidate = %+v", stored)
	}
}

func TestFusionScorerAvoidsLoudPairs(t *testing.T) {
	db := openTestDB(t)
	s := NewFusionScorer(db, 3)

	// High engagement forces an avoid even with few listings.
	for i := 0; i < 4; i++ {
		insertListing(t, db, fmt.Sprintf("l%d", i), fmt.Sprintf("Dog Hiking Shirt %d", i), "dog", 18, 3, 40000, 500)
	}

	f, err := s.Score("dog", "hiking", "dog hiking", time.Now().UTC())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if f == nil {
		t.Fatal("no candidate scored")
	}
	if f.Recommendation != "avoid" {
		t.Errorf("Recommendation = %q, want avoid", f.Recommendation)
	}
	// 50 + 25 (sparse) - 25 (loud) + 15 (rank) = 65.
	if f.Score != 65 {
		t.Errorf("Score = %.0f, want 65", f.Score)
	}
}

func TestFusionScorerCautionMiddleGround(t *testing.T) {
	db := openTestDB(t)
	s := NewFusionScorer(db, 3)

	// 12 matches with engagement 100: not sparse, not crowded, not
	// quiet, not loud.
	for i := 0; i < 12; i++ {
		insertListing(t, db, fmt.Sprintf("l%d", i), fmt.Sprintf("Nurse Coffee Mug %d", i), "nurse", 14, 30, 80000, 100)
	}

	f, err := s.Score("nurse", "coffee", "nurse coffee", time.Now().UTC())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if f == nil {
		t.Fatal("no candidate scored")
	}
	if f.Recommendation != "caution" {
		t.Errorf("Recommendation = %q, want caution", f.Recommendation)
	}
	// 50 + 15 (rank signal) with no other deltas.
	if f.Score != 65 {
		t.Errorf("Score = %.0f, want 65", f.Score)
	}
}
