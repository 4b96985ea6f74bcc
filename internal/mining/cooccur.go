package mining

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwhitaker/patternmine/internal/database"
)

// TypeNicheFusion is the insight type produced by the co-occurrence miner.
const TypeNicheFusion = "niche-fusion"

// minPairOccurrences is how often an unordered niche pair must co-occur
// under the same originating query before it is reported.
const minPairOccurrences = 10

// pairStat accumulates evidence for one unordered niche pair. There is no
// natural success/trial ratio for co-occurrence, so the pair count drives
// a simplified monotonic confidence instead of the shared estimator.
type pairStat struct {
	a, b          string
	count         int
	successGroups int
	ids           []string
	seen          map[string]struct{}
}

// CooccurMiner finds pairs of niches that keep showing up together under
// the same originating query, suggesting a viable combined segment.
type CooccurMiner struct{}

func NewCooccurMiner() *CooccurMiner { return &CooccurMiner{} }

func (m *CooccurMiner) Name() string { return "cross-niche" }

func (m *CooccurMiner) Mine(obs []database.Observation) Result {
	// Group by originating query; observations without one cannot
	// co-occur with anything.
	groupOrder := []string{}
	groups := make(map[string][]database.Observation)
	for _, o := range obs {
		if o.Query == nil || strings.TrimSpace(*o.Query) == "" {
			continue
		}
		q := strings.TrimSpace(*o.Query)
		if _, ok := groups[q]; !ok {
			groupOrder = append(groupOrder, q)
		}
		groups[q] = append(groups[q], o)
	}

	pairOrder := []string{}
	pairs := make(map[string]*pairStat)

	for _, q := range groupOrder {
		group := groups[q]

		nicheOrder := []string{}
		byNiche := make(map[string][]database.Observation)
		groupSold := false
		for _, o := range group {
			niche := strings.ToLower(o.Niche)
			if _, ok := byNiche[niche]; !ok {
				nicheOrder = append(nicheOrder, niche)
			}
			byNiche[niche] = append(byNiche[niche], o)
			if o.Sales > 0 {
				groupSold = true
			}
		}

		for i := 0; i < len(nicheOrder); i++ {
			for j := i + 1; j < len(nicheOrder); j++ {
				key := database.FusionPairKey(nicheOrder[i], nicheOrder[j])
				p, ok := pairs[key]
				if !ok {
					a, b := nicheOrder[i], nicheOrder[j]
					if b < a {
						a, b = b, a
					}
					p = &pairStat{a: a, b: b, seen: make(map[string]struct{})}
					pairs[key] = p
					pairOrder = append(pairOrder, key)
				}
				p.count++
				if groupSold {
					p.successGroups++
				}
				for _, niche := range []string{nicheOrder[i], nicheOrder[j]} {
					for _, o := range byNiche[niche] {
						if _, dup := p.seen[o.ExtID]; dup {
							continue
						}
						p.seen[o.ExtID] = struct{}{}
						p.ids = append(p.ids, o.ExtID)
					}
				}
			}
		}
	}

	var r Result
	for _, key := range pairOrder {
		p := pairs[key]
		r.Candidates++
		if p.count < minPairOccurrences {
			r.Rejected++
			continue
		}
		r.Insights = append(r.Insights, describePair(key, p))
	}
	return r
}

func describePair(key string, p *pairStat) database.Insight {
	confidence := 0.5 + 0.02*float64(p.count)
	if confidence > 0.9 {
		confidence = 0.9
	}

	phrases := FusionPhrases(p.a, p.b)

	payload, _ := json.Marshal(map[string]any{
		"nicheA":        p.a,
		"nicheB":        p.b,
		"occurrences":   p.count,
		"successGroups": p.successGroups,
		"fusionPhrases": phrases,
	})

	successRate := 0.0
	if p.count > 0 {
		successRate = float64(p.successGroups) / float64(p.count)
	}

	return database.Insight{
		Type:           TypeNicheFusion,
		PatternKey:     key,
		Category:       p.a,
		Title:          fmt.Sprintf("Niche fusion: %s + %s", p.a, p.b),
		Description:    fmt.Sprintf("**%s** and **%s** co-occurred in %d queries; the combination may support a joint segment.", p.a, p.b, p.count),
		Payload:        payload,
		SampleSize:     p.count,
		Confidence:     confidence,
		SuccessRate:    successRate,
		Niches:         []string{p.a, p.b},
		Timeframe:      "all-time",
		Risk:           riskLabel(confidence),
		ObservationIDs: p.ids,
	}
}

// FusionPhrases synthesizes two deterministic suggestion phrases for a
// niche pair.
func FusionPhrases(a, b string) []string {
	return []string{
		fmt.Sprintf("%s %s", a, b),
		fmt.Sprintf("%s for %s lovers", b, a),
	}
}
