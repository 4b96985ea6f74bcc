package mining

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwhitaker/patternmine/internal/database"
)

// TypePhrasePattern is the insight type produced by the phrase miner.
const TypePhrasePattern = "phrase-pattern"

const maxPayloadExamples = 5

// phraseTemplate is one of the fixed structural templates the miner
// recognizes in free text.
type phraseTemplate struct {
	key     string
	display string
	match   func(words []string, lower string) bool
}

var professionWords = map[string]bool{
	"nurse": true, "teacher": true, "engineer": true, "doctor": true,
	"programmer": true, "mechanic": true, "farmer": true, "chef": true,
	"barista": true, "gamer": true, "dad": true, "mom": true,
	"grandma": true, "grandpa": true, "boss": true, "coach": true,
}

var pronounWords = map[string]bool{
	"i": true, "we": true, "my": true, "she": true, "he": true, "they": true,
}

var stateWords = map[string]bool{
	"mode": true, "vibes": true, "era": true, "energy": true,
	"season": true, "life": true, "things": true, "time": true,
}

// phraseTemplates is checked in order; the first match wins.
var phraseTemplates = []phraseTemplate{
	{
		key:     "worlds-adj-noun",
		display: "World's {adj} {noun}",
		match: func(words []string, lower string) bool {
			return len(words) >= 3 && (strings.HasPrefix(lower, "world's ") || strings.HasPrefix(lower, "worlds "))
		},
	},
	{
		key:     "powered-by-noun",
		display: "Powered by {noun}",
		match: func(words []string, lower string) bool {
			return strings.Contains(lower, "powered by ")
		},
	},
	{
		key:     "pronoun-verb-noun",
		display: "{pronoun} {verb} {noun}",
		match: func(words []string, lower string) bool {
			return len(words) >= 3 && pronounWords[words[0]]
		},
	},
	{
		key:     "descriptor-profession",
		display: "{descriptor} {profession}",
		match: func(words []string, lower string) bool {
			return len(words) >= 2 && professionWords[words[len(words)-1]]
		},
	},
	{
		key:     "topic-state",
		display: "{topic} {state}",
		match: func(words []string, lower string) bool {
			return len(words) >= 2 && stateWords[words[len(words)-1]]
		},
	},
	{
		key:     "adverb-action",
		display: "{adverb} {action}",
		match: func(words []string, lower string) bool {
			return len(words) >= 2 && len(words[0]) > 3 && strings.HasSuffix(words[0], "ly")
		},
	},
}

// extractTemplate returns the key of the first template matching the
// label, or "" if none match.
func extractTemplate(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	words := strings.Fields(lower)
	if len(words) == 0 {
		return ""
	}
	for i := range words {
		words[i] = strings.Trim(words[i], ".,!?:;\"'()-")
	}
	for _, t := range phraseTemplates {
		if t.match(words, lower) {
			return t.key
		}
	}
	return ""
}

func templateDisplay(key string) string {
	for _, t := range phraseTemplates {
		if t.key == key {
			return t.display
		}
	}
	return key
}

// PhraseMiner finds recurring structural phrase templates whose instances
// keep getting approved or sold.
type PhraseMiner struct {
	validator Validator
}

func NewPhraseMiner(v Validator) *PhraseMiner {
	return &PhraseMiner{validator: v}
}

func (m *PhraseMiner) Name() string { return "phrase-template" }

func (m *PhraseMiner) Mine(obs []database.Observation) Result {
	set := newCandidateSet(TypePhrasePattern)
	for _, o := range obs {
		key := extractTemplate(o.Label)
		if key == "" {
			continue
		}
		set.add(key, o, successByApprovalOrSale(o))
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

// nicheBreakdown is the per-niche success split carried in the payload.
type nicheBreakdown struct {
	Niche       string  `json:"niche"`
	Samples     int     `json:"samples"`
	SuccessRate float64 `json:"successRate"`
}

func (m *PhraseMiner) describe(c *Candidate, confidence float64) database.Insight {
	examples := make([]string, 0, maxPayloadExamples)
	for _, o := range c.Observations() {
		if len(examples) == maxPayloadExamples {
			break
		}
		examples = append(examples, o.Label)
	}

	breakdown, applicable := nicheSplit(c, successByApprovalOrSale)

	payload, _ := json.Marshal(map[string]any{
		"template": templateDisplay(c.Key),
		"examples": examples,
		"perNiche": breakdown,
	})

	return database.Insight{
		Type:           TypePhrasePattern,
		PatternKey:     c.Key,
		Category:       firstNiche(applicable, c),
		Title:          fmt.Sprintf("Template: %s", templateDisplay(c.Key)),
		Description:    fmt.Sprintf("Phrases shaped like **%s** succeeded in %d of %d observed uses.", templateDisplay(c.Key), c.Success, c.Total()),
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

// nicheSplit computes the per-niche breakdown and the niches a pattern is
// considered applicable to: at least 3 samples and at least half of them
// successful.
func nicheSplit(c *Candidate, success func(database.Observation) bool) ([]nicheBreakdown, []string) {
	type tally struct {
		total, success int
	}
	order := []string{}
	byNiche := make(map[string]*tally)
	for _, o := range c.Observations() {
		t, ok := byNiche[o.Niche]
		if !ok {
			t = &tally{}
			byNiche[o.Niche] = t
			order = append(order, o.Niche)
		}
		t.total++
		if success(o) {
			t.success++
		}
	}

	var breakdown []nicheBreakdown
	var applicable []string
	for _, niche := range order {
		t := byNiche[niche]
		rate := float64(t.success) / float64(t.total)
		breakdown = append(breakdown, nicheBreakdown{Niche: niche, Samples: t.total, SuccessRate: rate})
		if t.total >= 3 && rate >= 0.5 {
			applicable = append(applicable, niche)
		}
	}
	return breakdown, applicable
}

func firstNiche(applicable []string, c *Candidate) string {
	if len(applicable) > 0 {
		return applicable[0]
	}
	if obs := c.Observations(); len(obs) > 0 {
		return obs[0].Niche
	}
	return ""
}

func riskLabel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "low"
	case confidence >= 0.8:
		return "medium"
	default:
		return "high"
	}
}
