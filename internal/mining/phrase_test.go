package mining

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
)

func TestExtractTemplate(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"World's Okayest Nurse", "worlds-adj-noun"},
		{"Worlds Best Cat Dad", "worlds-adj-noun"},
		{"Powered by Coffee", "powered-by-noun"},
		{"I Paused My Game", "pronoun-verb-noun"},
		{"My Garden My Rules", "pronoun-verb-noun"},
		{"Retired Teacher", "descriptor-profession"},
		{"Crazy Cat Mom", "descriptor-profession"},
		{"Goblin Mode", "topic-state"},
		{"Cottage Vibes", "topic-state"},
		{"Aggressively Knitting", "adverb-action"},
		{"Plain Unmatched Text", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractTemplate(tt.label); got != tt.want {
			t.Errorf("extractTemplate(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestExtractTemplateFirstMatchWins(t *testing.T) {
	// "World's Okayest Nurse" also ends in a profession word; the
	// worlds template is checked first and must win.
	if got := extractTemplate("World's Okayest Nurse"); got != "worlds-adj-noun" {
		t.Errorf("got %q, want worlds-adj-noun", got)
	}
}

// phraseBatch builds total observations matching the worlds template,
// the first successes of them approved, spread evenly across weeks.
func phraseBatch(total, successes, weeks int) []database.Observation {
	out := make([]database.Observation, 0, total)
	for i := 0; i < total; i++ {
		approved := i < successes
		out = append(out, obsAt(fmt.Sprintf("World's Okayest Nurse %d", i), "nurse", weekOf(i%weeks).Add(time.Duration(i)*time.Minute), approved, 0))
	}
	return out
}

func TestPhraseMinerEndToEnd(t *testing.T) {
	m := NewPhraseMiner(testValidator())

	// 12 instances of the same template across 3 ISO weeks, 10 of them
	// approved.
	r := m.Mine(phraseBatch(12, 10, 3))

	if r.Candidates != 1 {
		t.Fatalf("Candidates = %d, want 1", r.Candidates)
	}
	if r.Rejected != 0 {
		t.Fatalf("Rejected = %d, want 0", r.Rejected)
	}
	if len(r.Insights) != 1 {
		t.Fatalf("len(Insights) = %d, want 1", len(r.Insights))
	}

	in := r.Insights[0]
	if in.Type != TypePhrasePattern {
		t.Errorf("Type = %q, want %q", in.Type, TypePhrasePattern)
	}
	if in.PatternKey != "worlds-adj-noun" {
		t.Errorf("PatternKey = %q, want worlds-adj-noun", in.PatternKey)
	}
	if in.Confidence < 0.8 {
		t.Errorf("Confidence = %.4f, want >= 0.8", in.Confidence)
	}
	if in.SampleSize != 12 {
		t.Errorf("SampleSize = %d, want 12", in.SampleSize)
	}
	if len(in.ObservationIDs) != 12 {
		t.Errorf("len(ObservationIDs) = %d, want 12", len(in.ObservationIDs))
	}
	if len(in.Niches) != 1 || in.Niches[0] != "nurse" {
		t.Errorf("Niches = %v, want [nurse]", in.Niches)
	}

	var payload struct {
		Template string           `json:"template"`
		Examples []string         `json:"examples"`
		PerNiche []nicheBreakdown `json:"perNiche"`
	}
	if err := json.Unmarshal(in.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.Template != "World's {adj} {noun}" {
		t.Errorf("payload template = %q", payload.Template)
	}
	if len(payload.Examples) != maxPayloadExamples {
		t.Errorf("len(examples) = %d, want %d", len(payload.Examples), maxPayloadExamples)
	}
}

func TestPhraseMinerRejectsThinBatch(t *testing.T) {
	m := NewPhraseMiner(testValidator())
	r := m.Mine(phraseBatch(9, 9, 3))
	if r.Candidates != 1 || r.Rejected != 1 {
		t.Errorf("Candidates=%d Rejected=%d, want 1/1", r.Candidates, r.Rejected)
	}
	if len(r.Insights) != 0 {
		t.Errorf("len(Insights) = %d, want 0", len(r.Insights))
	}
}

func TestPhraseMinerIgnoresUnmatchedLabels(t *testing.T) {
	m := NewPhraseMiner(testValidator())
	obs := []database.Observation{
		obsAt("Some Plain Text", "cats", weekOf(0), true, 1),
		obsAt("Another Ordinary Line", "cats", weekOf(1), true, 1),
	}
	r := m.Mine(obs)
	if r.Candidates != 0 || len(r.Insights) != 0 {
		t.Errorf("unmatched batch produced %d candidates, %d insights", r.Candidates, len(r.Insights))
	}
}
