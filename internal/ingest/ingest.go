package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwhitaker/patternmine/internal/database"
)

// Result holds the results of an import run.
type Result struct {
	Observations int
	Listings     int
	Duplicates   int
	Skipped      int
}

// exportFile is the JSON shape produced by the external observation
// source. Every field except label/title and niche is optional.
type exportFile struct {
	Observations []observationRecord `json:"observations"`
	Listings     []listingRecord     `json:"listings"`
}

type observationRecord struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Niche      string   `json:"niche"`
	Style      *string  `json:"style"`
	Tone       *string  `json:"tone"`
	Approved   bool     `json:"approved"`
	Sales      int      `json:"sales"`
	Engagement int      `json:"engagement"`
	Rating     *float64 `json:"rating"`
	Source     string   `json:"source"`
	Query      *string  `json:"query"`
	CreatedAt  string   `json:"created_at"`
}

type listingRecord struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Niche      string  `json:"niche"`
	Price      float64 `json:"price"`
	Reviews    int     `json:"reviews"`
	Rating     float64 `json:"rating"`
	SalesRank  int     `json:"sales_rank"`
	Engagement int     `json:"engagement"`
	Query      *string `json:"query"`
	ScrapedAt  string  `json:"scraped_at"`
}

// Importer loads observation and listing exports into the store.
type Importer struct {
	db *database.DB
}

func NewImporter(db *database.DB) *Importer {
	return &Importer{db: db}
}

// ImportFile reads one JSON export and inserts everything new in it.
// Records already in the store (by external id) count as duplicates;
// records missing a label or niche are skipped. Records without an id
// get a synthesized uuid, so re-importing the same id-less file creates
// new rows.
func (im *Importer) ImportFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	var export exportFile
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}

	r := &Result{}
	now := time.Now().UTC()

	for _, rec := range export.Observations {
		if strings.TrimSpace(rec.Label) == "" || strings.TrimSpace(rec.Niche) == "" {
			r.Skipped++
			continue
		}
		extID := rec.ID
		if extID == "" {
			extID = uuid.NewString()
		} else if existing, err := im.db.GetObservationByExtID(extID); err != nil {
			return nil, fmt.Errorf("lookup observation %s: %w", extID, err)
		} else if existing != nil {
			r.Duplicates++
			continue
		}

		source := rec.Source
		if source == "" {
			source = "generated"
		}
		o := &database.Observation{
			ExtID:      extID,
			Label:      rec.Label,
			Niche:      strings.ToLower(strings.TrimSpace(rec.Niche)),
			Style:      rec.Style,
			Tone:       rec.Tone,
			Approved:   rec.Approved,
			Sales:      rec.Sales,
			Engagement: rec.Engagement,
			Rating:     rec.Rating,
			Source:     source,
			Query:      rec.Query,
			CreatedAt:  parseRecordTime(rec.CreatedAt, now),
		}
		if _, err := im.db.InsertObservation(o); err != nil {
			return nil, fmt.Errorf("insert observation %s: %w", extID, err)
		}
		r.Observations++
	}

	for _, rec := range export.Listings {
		if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Niche) == "" {
			r.Skipped++
			continue
		}
		extID := rec.ID
		if extID == "" {
			extID = uuid.NewString()
		} else if existing, err := im.db.GetListingByExtID(extID); err != nil {
			return nil, fmt.Errorf("lookup listing %s: %w", extID, err)
		} else if existing != nil {
			r.Duplicates++
			continue
		}

		l := &database.Listing{
			ExtID:      extID,
			Title:      rec.Title,
			Niche:      rec.Niche,
			Price:      rec.Price,
			Reviews:    rec.Reviews,
			Rating:     rec.Rating,
			SalesRank:  rec.SalesRank,
			Engagement: rec.Engagement,
			Query:      rec.Query,
			ScrapedAt:  parseRecordTime(rec.ScrapedAt, now),
		}
		if _, err := im.db.InsertListing(l); err != nil {
			return nil, fmt.Errorf("insert listing %s: %w", extID, err)
		}
		r.Listings++
	}

	return r, nil
}

// parseRecordTime accepts RFC3339 timestamps and falls back to the
// import time for anything unparseable.
func parseRecordTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
