package mining

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwhitaker/patternmine/internal/database"
)

// TypeListingStructure is the insight type produced by the structure miner.
const TypeListingStructure = "listing-structure"

// structureCategory is one of the fixed title heuristics. The tests are
// independent: a title may match zero, one, or several categories.
type structureCategory struct {
	key     string
	display string
	match   func(lower string, words []string) bool
}

var structureCategories = []structureCategory{
	{
		key:     "gift-framing",
		display: "Gift framing",
		match: func(lower string, words []string) bool {
			return strings.Contains(lower, "gift") || strings.Contains(lower, "present") ||
				strings.Contains(lower, "for him") || strings.Contains(lower, "for her") ||
				strings.Contains(lower, "for mom") || strings.Contains(lower, "for dad")
		},
	},
	{
		key:     "humor-framing",
		display: "Humor framing",
		match: func(lower string, words []string) bool {
			return strings.Contains(lower, "funny") || strings.Contains(lower, "humor") ||
				strings.Contains(lower, "joke") || strings.Contains(lower, "sarcastic") ||
				strings.Contains(lower, "hilarious")
		},
	},
	{
		key:     "profession-led",
		display: "Profession-led",
		match: func(lower string, words []string) bool {
			return len(words) > 0 && professionWords[words[0]]
		},
	},
	{
		key:     "quote-style",
		display: "Quote style",
		match: func(lower string, words []string) bool {
			trimmed := strings.TrimSpace(lower)
			if len(trimmed) < 2 {
				return false
			}
			first := trimmed[0]
			last := trimmed[len(trimmed)-1]
			return (first == '"' || first == '\'') && (last == '"' || last == '\'')
		},
	},
}

// StructureCategoryKeys returns the fixed framing category keys in
// definition order.
func StructureCategoryKeys() []string {
	keys := make([]string, len(structureCategories))
	for i, cat := range structureCategories {
		keys[i] = cat.key
	}
	return keys
}

// StructureMiner classifies listing titles against the fixed framing
// heuristics and finds the framings whose titles actually sell.
type StructureMiner struct {
	validator Validator
}

func NewStructureMiner(v Validator) *StructureMiner {
	return &StructureMiner{validator: v}
}

func (m *StructureMiner) Name() string { return "listing-structure" }

func (m *StructureMiner) Mine(obs []database.Observation) Result {
	set := newCandidateSet(TypeListingStructure)
	for _, o := range obs {
		lower := strings.ToLower(o.Label)
		words := strings.Fields(lower)
		for i := range words {
			words[i] = strings.Trim(words[i], ".,!?:;\"'()-")
		}
		for _, cat := range structureCategories {
			if cat.match(lower, words) {
				set.add(cat.key, o, successBySale(o))
			}
		}
	}

	var r Result
	for _, c := range set.all() {
		r.Candidates++
		confidence, ok := m.validator.Validate(c)
		if !ok {
			r.Rejected++
			continue
		}
		r.Insights = append(r.Insights, m.describe(c, confidence))
	}
	return r
}

func (m *StructureMiner) describe(c *Candidate, confidence float64) database.Insight {
	var sales int
	examples := make([]string, 0, maxPayloadExamples)
	for _, o := range c.Observations() {
		sales += o.Sales
		if len(examples) < maxPayloadExamples {
			examples = append(examples, o.Label)
		}
	}
	meanSales := float64(sales) / float64(c.Total())

	display := c.Key
	for _, cat := range structureCategories {
		if cat.key == c.Key {
			display = cat.display
			break
		}
	}

	_, applicable := nicheSplit(c, successBySale)

	payload, _ := json.Marshal(map[string]any{
		"category":  display,
		"meanSales": meanSales,
		"examples":  examples,
	})

	return database.Insight{
		Type:           TypeListingStructure,
		PatternKey:     c.Key,
		Category:       display,
		Title:          fmt.Sprintf("Title structure: %s", display),
		Description:    fmt.Sprintf("**%s** titles sold in %d of %d observations (%.1f avg sales).", display, c.Success, c.Total(), meanSales),
		Payload:        payload,
		SampleSize:     c.Total(),
		Confidence:     confidence,
		SuccessRate:    c.SuccessRate(),
		Niches:         applicable,
		Timeframe:      "all-time",
		Risk:           riskLabel(confidence),
		ObservationIDs: c.ObservationIDs(),
	}
}
