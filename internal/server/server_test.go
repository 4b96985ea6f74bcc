package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedInsight(t *testing.T, db *database.DB, insightType, key, niche string, confidence float64) {
	t.Helper()
	_, err := db.UpsertInsight(&database.Insight{
		Type:        insightType,
		PatternKey:  key,
		Title:       "Template: " + key,
		Description: "**" + key + "** keeps working.",
		Payload:     []byte("{}"),
		SampleSize:  12,
		Confidence:  confidence,
		SuccessRate: 0.8,
		Niches:      []string{niche},
		Risk:        "medium",
	})
	if err != nil {
		t.Fatalf("seed insight: %v", err)
	}
}

func seedAggregate(t *testing.T, db *database.DB, niche string) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.UpsertNicheAggregate(&database.NicheAggregate{
		Niche:          niche,
		ListingCount:   12,
		AvgPrice:       18.5,
		Saturation:     "low",
		Recommendation: "enter",
		Reason:         "low competition",
		Confidence:     24,
		LastAnalyzedAt: &now,
	}); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedInsight(t, db, "phrase-pattern", "worlds-adj-noun", "nurse", 0.85)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "worlds-adj-noun") {
		t.Error("expected insight title in response body")
	}
	if !strings.Contains(body, "<strong>worlds-adj-noun</strong>") {
		t.Error("expected rendered markdown in description")
	}
}

func TestIndexRejectsUnknownPath(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestInsightsAPI(t *testing.T) {
	db := openTestDB(t)
	seedInsight(t, db, "phrase-pattern", "worlds-adj-noun", "nurse", 0.85)
	seedInsight(t, db, "phrase-pattern", "powered-by-noun", "coffee", 0.92)
	seedInsight(t, db, "style-effectiveness", "vintage", "nurse", 0.9)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/api/insights?type=phrase-pattern")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Insights []database.Insight `json:"insights"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Insights) != 2 {
		t.Fatalf("len = %d, want 2", len(resp.Insights))
	}
	// Ordered by confidence.
	if resp.Insights[0].PatternKey != "powered-by-noun" {
		t.Errorf("first insight = %q", resp.Insights[0].PatternKey)
	}

	rec = get(t, srv, "/api/insights?type=phrase-pattern&niche=nurse")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Insights) != 1 || resp.Insights[0].PatternKey != "worlds-adj-noun" {
		t.Errorf("niche filter returned %+v", resp.Insights)
	}

	if rec := get(t, srv, "/api/insights?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestNicheAPI(t *testing.T) {
	db := openTestDB(t)
	seedAggregate(t, db, "nurse")
	seedInsight(t, db, "phrase-pattern", "worlds-adj-noun", "nurse", 0.85)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/api/niches/nurse")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Aggregate *database.NicheAggregate      `json:"aggregate"`
		Insights  map[string][]database.Insight `json:"insights"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Aggregate == nil || resp.Aggregate.Recommendation != "enter" {
		t.Errorf("aggregate = %+v", resp.Aggregate)
	}
	if len(resp.Insights["phrase-pattern"]) != 1 {
		t.Errorf("insights = %+v", resp.Insights)
	}

	// Retrieval bumps the query counter.
	agg, err := db.GetNicheAggregate("nurse")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if agg.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1", agg.QueryCount)
	}

	if rec := get(t, srv, "/api/niches/unheard-of"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown niche: expected 404, got %d", rec.Code)
	}
}

func TestFusionAPI(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	candidates := []database.FusionCandidate{
		{PairKey: "cat+yoga", NicheA: "cat", NicheB: "yoga", Query: "cat yoga", ListingCount: 4, Score: 90, Saturation: "low", Recommendation: "enter", UpdatedAt: &now},
		{PairKey: "cat+dog", NicheA: "cat", NicheB: "dog", Query: "cat dog", ListingCount: 80, Score: 20, Saturation: "medium", Recommendation: "avoid", UpdatedAt: &now},
	}
	for i := range candidates {
		if err := db.UpsertFusionCandidate(&candidates[i]); err != nil {
			t.Fatalf("seed fusion: %v", err)
		}
	}
	srv := newTestServer(t, db)

	rec := get(t, srv, "/api/fusion")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Fusion []database.FusionCandidate `json:"fusion"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Fusion) != 2 {
		t.Errorf("len = %d, want 2", len(resp.Fusion))
	}

	// Scoped to a niche, avoid verdicts are filtered out.
	rec = get(t, srv, "/api/fusion?niche=cat")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Fusion) != 1 || resp.Fusion[0].PairKey != "cat+yoga" {
		t.Errorf("filtered fusion = %+v", resp.Fusion)
	}
}

func TestNichePage(t *testing.T) {
	db := openTestDB(t)
	seedAggregate(t, db, "nurse")
	srv := newTestServer(t, db)

	rec := get(t, srv, "/niche/nurse")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "low competition") {
		t.Error("expected aggregate reason on page")
	}
}
