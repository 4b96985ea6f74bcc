package mining

import (
	"time"

	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/stats"
)

// Candidate is a provisional pattern grouping of observations along one
// dimension, not yet statistically validated. It is rebuilt from scratch
// each run and never persisted directly.
type Candidate struct {
	Dimension string
	Key       string
	Success   int

	ids   []string
	seen  map[string]struct{}
	times []time.Time
	obs   []database.Observation
}

func newCandidate(dimension, key string) *Candidate {
	return &Candidate{
		Dimension: dimension,
		Key:       key,
		seen:      make(map[string]struct{}),
	}
}

// Add records an observation in the bucket. An observation already in the
// bucket is ignored so overlapping windows cannot double-count it.
func (c *Candidate) Add(o database.Observation, success bool) {
	if _, dup := c.seen[o.ExtID]; dup {
		return
	}
	c.seen[o.ExtID] = struct{}{}
	c.ids = append(c.ids, o.ExtID)
	c.times = append(c.times, o.CreatedAt)
	c.obs = append(c.obs, o)
	if success {
		c.Success++
	}
}

// Total returns the number of distinct observations in the bucket.
func (c *Candidate) Total() int {
	return len(c.ids)
}

// DistinctWeeks returns the distinct ISO weeks the bucket spans.
func (c *Candidate) DistinctWeeks() int {
	return stats.DistinctWeeks(c.times)
}

// SuccessRate returns successes over total, 0 for an empty bucket.
func (c *Candidate) SuccessRate() float64 {
	if len(c.ids) == 0 {
		return 0
	}
	return float64(c.Success) / float64(len(c.ids))
}

// ObservationIDs returns the contributing observation identities in
// insertion order.
func (c *Candidate) ObservationIDs() []string {
	return c.ids
}

// Observations returns the bucket's observations in insertion order.
func (c *Candidate) Observations() []database.Observation {
	return c.obs
}

// candidateSet groups observations into candidates keyed by pattern key,
// preserving first-insertion order so ties resolve stably.
type candidateSet struct {
	dimension string
	order     []string
	byKey     map[string]*Candidate
}

func newCandidateSet(dimension string) *candidateSet {
	return &candidateSet{
		dimension: dimension,
		byKey:     make(map[string]*Candidate),
	}
}

func (s *candidateSet) add(key string, o database.Observation, success bool) {
	c, ok := s.byKey[key]
	if !ok {
		c = newCandidate(s.dimension, key)
		s.byKey[key] = c
		s.order = append(s.order, key)
	}
	c.Add(o, success)
}

// all returns the candidates in first-insertion order.
func (s *candidateSet) all() []*Candidate {
	out := make([]*Candidate, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}
