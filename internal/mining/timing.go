package mining

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/stats"
)

// TypeSeasonalTrend is the insight type produced by the timing miner.
const TypeSeasonalTrend = "seasonal-trend"

const (
	// A month needs this many samples before it participates in the
	// peak comparison at all.
	minMonthSamples = 5
	// A month is a peak when its mean conversion reaches this multiple
	// of the niche's overall mean.
	peakMultiplier = 1.5
	// A niche needs this many peak months and total samples to validate.
	minPeakMonths    = 3
	minTimingSamples = 10
)

// TimingMiner finds niches whose conversions cluster in particular
// calendar months. Its validation unit is the month rather than the ISO
// week, so it scores confidence on its own scale instead of the shared
// estimator: proportional to sample count, capped at 0.95.
type TimingMiner struct{}

func NewTimingMiner() *TimingMiner { return &TimingMiner{} }

func (m *TimingMiner) Name() string { return "niche-timing" }

type monthTally struct {
	samples int
	sales   int
}

func (m *TimingMiner) Mine(obs []database.Observation) Result {
	set := newCandidateSet(TypeSeasonalTrend)
	for _, o := range obs {
		set.add(o.Niche, o, o.Sales > 0)
	}

	var r Result
	for _, c := range set.all() {
		r.Candidates++
		insight, ok := m.analyze(c)
		if !ok {
			r.Rejected++
			continue
		}
		r.Insights = append(r.Insights, insight)
	}
	return r
}

func (m *TimingMiner) analyze(c *Candidate) (database.Insight, bool) {
	months := make(map[int]*monthTally)
	for _, o := range c.Observations() {
		idx := stats.MonthIndex(o.CreatedAt)
		t, ok := months[idx]
		if !ok {
			t = &monthTally{}
			months[idx] = t
		}
		t.samples++
		t.sales += o.Sales
	}

	// Overall mean over months with enough samples to be meaningful.
	var total, sales int
	for _, t := range months {
		if t.samples < minMonthSamples {
			continue
		}
		total += t.samples
		sales += t.sales
	}
	if total < minTimingSamples {
		return database.Insight{}, false
	}
	overallMean := float64(sales) / float64(total)
	if overallMean <= 0 {
		return database.Insight{}, false
	}

	var peaks []int
	breakdown := make(map[string]map[string]float64)
	for idx := 1; idx <= 12; idx++ {
		t, ok := months[idx]
		if !ok || t.samples < minMonthSamples {
			continue
		}
		mean := float64(t.sales) / float64(t.samples)
		breakdown[fmt.Sprintf("%d", idx)] = map[string]float64{
			"samples":   float64(t.samples),
			"meanSales": mean,
		}
		if mean >= peakMultiplier*overallMean {
			peaks = append(peaks, idx)
		}
	}
	if len(peaks) < minPeakMonths {
		return database.Insight{}, false
	}
	sort.Ints(peaks)

	confidence := float64(total) / 20
	if confidence > 0.95 {
		confidence = 0.95
	}

	payload, _ := json.Marshal(map[string]any{
		"peakMonths": peaks,
		"multiplier": peakMultiplier,
		"monthly":    breakdown,
	})

	return database.Insight{
		Type:           TypeSeasonalTrend,
		PatternKey:     c.Key,
		Category:       c.Key,
		Title:          fmt.Sprintf("Seasonal window: %s", c.Key),
		Description:    fmt.Sprintf("Demand for **%s** concentrates in %d peak months (>= %.1fx the overall mean).", c.Key, len(peaks), peakMultiplier),
		Payload:        payload,
		SampleSize:     total,
		Confidence:     confidence,
		SuccessRate:    c.SuccessRate(),
		Niches:         []string{c.Key},
		Timeframe:      "monthly",
		Risk:           riskLabel(confidence),
		ObservationIDs: c.ObservationIDs(),
	}, true
}
