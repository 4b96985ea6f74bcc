package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jwhitaker/patternmine/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

const sampleExport = `{
	"observations": [
		{"id": "o1", "label": "World's Okayest Nurse", "niche": "Nurse", "approved": true, "created_at": "2026-08-03T10:00:00Z"},
		{"label": "Powered by Coffee", "niche": "coffee", "sales": 2},
		{"label": "", "niche": "coffee"}
	],
	"listings": [
		{"id": "l1", "title": "Funny Nurse Mug", "niche": "nurse", "price": 14.99, "reviews": 12, "sales_rank": 40000},
		{"title": "Nurse Fuel Shirt", "niche": "Nurse", "price": 19.99}
	]
}`

func TestImportFile(t *testing.T) {
	db := openTestDB(t)
	im := NewImporter(db)

	r, err := im.ImportFile(writeExport(t, sampleExport))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if r.Observations != 2 || r.Listings != 2 {
		t.Errorf("result = %+v, want 2 observations and 2 listings", r)
	}
	if r.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", r.Skipped)
	}

	o, err := db.GetObservationByExtID("o1")
	if err != nil {
		t.Fatalf("get observation: %v", err)
	}
	if o == nil {
		t.Fatal("o1 not imported")
	}
	if o.Niche != "nurse" {
		t.Errorf("Niche = %q, want lower-cased nurse", o.Niche)
	}
	if !o.Approved {
		t.Error("approved flag lost")
	}
	if o.CreatedAt.Year() != 2026 || o.CreatedAt.Month() != 8 {
		t.Errorf("CreatedAt = %v, want the exported timestamp", o.CreatedAt)
	}

	l, err := db.GetListingByExtID("l1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if l == nil {
		t.Fatal("l1 not imported")
	}
	if l.Price != 14.99 {
		t.Errorf("Price = %.2f", l.Price)
	}
	if l.Niche != "nurse" {
		t.Errorf("listing Niche = %q, want nurse", l.Niche)
	}
}

func TestImportFileSynthesizesIDs(t *testing.T) {
	db := openTestDB(t)
	im := NewImporter(db)
	path := writeExport(t, `{"observations": [{"label": "Goblin Mode", "niche": "goblin"}]}`)

	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	counts, err := db.CountObservationsByNiche()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["goblin"] != 1 {
		t.Errorf("goblin count = %d, want 1", counts["goblin"])
	}
}

func TestImportFileDuplicates(t *testing.T) {
	db := openTestDB(t)
	im := NewImporter(db)
	path := writeExport(t, sampleExport)

	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("first import: %v", err)
	}
	r, err := im.ImportFile(path)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	// Only the explicit ids dedupe; id-less records import again.
	if r.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", r.Duplicates)
	}
	if r.Observations != 1 || r.Listings != 1 {
		t.Errorf("result = %+v, want 1 new observation and 1 new listing", r)
	}
}

func TestImportFileBadJSON(t *testing.T) {
	db := openTestDB(t)
	im := NewImporter(db)
	if _, err := im.ImportFile(writeExport(t, "not json")); err == nil {
		t.Error("bad JSON accepted")
	}
	if _, err := im.ImportFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
}
