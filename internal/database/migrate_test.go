package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFreshDatabaseAtLatestVersion(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	db.InsertObservation(testObservation("obs-1", "nurse", true, time.Now()))
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer db2.Close()

	o, err := db2.GetObservationByExtID("obs-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o == nil {
		t.Error("expected observation to survive reopen")
	}
}
