package mining

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwhitaker/patternmine/internal/database"
)

// TypeStyleEffectiveness is the insight type produced by the style miner.
const TypeStyleEffectiveness = "style-effectiveness"

// UnknownStyle buckets observations lacking a style tag. They still count
// toward scoring but are labeled clearly.
const UnknownStyle = "Unknown"

// StyleMiner measures which visual/tonal styles keep getting approved.
type StyleMiner struct {
	validator Validator
}

func NewStyleMiner(v Validator) *StyleMiner {
	return &StyleMiner{validator: v}
}

func (m *StyleMiner) Name() string { return "style-effectiveness" }

func (m *StyleMiner) Mine(obs []database.Observation) Result {
	set := newCandidateSet(TypeStyleEffectiveness)
	for _, o := range obs {
		style := UnknownStyle
		if o.Style != nil && strings.TrimSpace(*o.Style) != "" {
			style = strings.TrimSpace(*o.Style)
		}
		set.add(style, o, successByApproval(o))
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

func (m *StyleMiner) describe(c *Candidate, confidence float64) database.Insight {
	var engagement, sales int
	niches := []string{}
	seenNiche := make(map[string]struct{})
	for _, o := range c.Observations() {
		engagement += o.Engagement
		sales += o.Sales
		if _, ok := seenNiche[o.Niche]; !ok {
			seenNiche[o.Niche] = struct{}{}
			niches = append(niches, o.Niche)
		}
	}
	n := float64(c.Total())
	meanEngagement := float64(engagement) / n
	meanSales := float64(sales) / n

	payload, _ := json.Marshal(map[string]any{
		"style":          c.Key,
		"meanEngagement": meanEngagement,
		"meanSales":      meanSales,
	})

	return database.Insight{
		Type:           TypeStyleEffectiveness,
		PatternKey:     strings.ToLower(c.Key),
		Category:       c.Key,
		Title:          fmt.Sprintf("Style: %s", c.Key),
		Description:    fmt.Sprintf("The **%s** style was approved in %d of %d observations (%.1f avg engagement).", c.Key, c.Success, c.Total(), meanEngagement),
		Payload:        payload,
		SampleSize:     c.Total(),
		Confidence:     confidence,
		SuccessRate:    c.SuccessRate(),
		Niches:         niches,
		Timeframe:      "all-time",
		Risk:           riskLabel(confidence),
		ObservationIDs: c.ObservationIDs(),
	}
}
