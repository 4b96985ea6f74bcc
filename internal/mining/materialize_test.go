package mining

import (
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

func TestMaterializerCountsCreatedAndUpdated(t *testing.T) {
	db := openTestDB(t)
	m := NewMaterializer(db)

	miner := NewPhraseMiner(testValidator())
	first := miner.Mine(phraseBatch(12, 10, 3))
	if len(first.Insights) != 1 {
		t.Fatalf("fixture produced %d insights", len(first.Insights))
	}

	res := m.Persist(first.Insights)
	if res.Created != 1 || res.Updated != 0 || len(res.Errors) != 0 {
		t.Fatalf("first pass: %+v", res)
	}

	// Persisting the same pattern again refreshes rather than creates.
	second := miner.Mine(phraseBatch(12, 10, 3))
	res = m.Persist(second.Insights)
	if res.Created != 0 || res.Updated != 1 {
		t.Fatalf("second pass: %+v", res)
	}

	stored, err := db.GetInsightByKey(TypePhrasePattern, "worlds-adj-noun")
	if err != nil {
		t.Fatalf("get insight: %v", err)
	}
	if stored == nil {
		t.Fatal("insight not stored")
	}
	if stored.TimesValidated != 2 {
		t.Errorf("TimesValidated = %d, want 2", stored.TimesValidated)
	}
}

func TestMaterializerContinuesPastFailures(t *testing.T) {
	db := openTestDB(t)
	m := NewMaterializer(db)

	bad := database.Insight{Type: "", PatternKey: "", Payload: []byte("{}")}
	good := database.Insight{
		Type:       TypeStyleEffectiveness,
		PatternKey: "vintage",
		Title:      "Style: Vintage",
		Payload:    []byte("{}"),
		Confidence: 0.85,
	}
	db.Close() // force the first upsert to fail

	res := m.Persist([]database.Insight{bad, good})
	if len(res.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2 failures on a closed database", res.Errors)
	}
	if res.Created != 0 || res.Updated != 0 {
		t.Errorf("counted writes on closed database: %+v", res)
	}
}
