package mining

import (
	"github.com/jwhitaker/patternmine/internal/config"
	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/stats"
)

// Miner extracts pattern candidates along one dimension from an
// observation batch, validates them, and describes the survivors as
// insights ready for materialization. Miners share no state and run
// independently over the same batch.
type Miner interface {
	Name() string
	Mine(obs []database.Observation) Result
}

// Result summarizes one miner's pass over a batch.
type Result struct {
	Candidates int
	Rejected   int
	Insights   []database.Insight
}

// Validator applies the shared validation thresholds: minimum sample
// size, minimum distinct calendar weeks, and minimum estimator
// confidence. Candidates that fall marginally short are silently dropped.
type Validator struct {
	MinSampleSize int
	MinConfidence float64
	MinPeriods    int
	estimator     stats.Estimator
}

// NewValidator builds a Validator from the mining thresholds.
func NewValidator(cfg config.Mining) Validator {
	return Validator{
		MinSampleSize: cfg.MinSampleSize,
		MinConfidence: cfg.MinConfidence,
		MinPeriods:    cfg.MinPeriods,
		estimator:     stats.NewEstimator(cfg.MinSampleSize, cfg.MinPeriods),
	}
}

// Validate returns the candidate's confidence and whether it clears every
// threshold.
func (v Validator) Validate(c *Candidate) (float64, bool) {
	if c.Total() < v.MinSampleSize {
		return 0, false
	}
	periods := c.DistinctWeeks()
	if periods < v.MinPeriods {
		return 0, false
	}
	confidence := v.estimator.Confidence(c.Success, c.Total(), periods)
	return confidence, confidence >= v.MinConfidence
}

// successByApprovalOrSale is the success signal for phrase mining.
func successByApprovalOrSale(o database.Observation) bool {
	return o.Approved || o.Sales > 0
}

// successByApproval is the success signal for style mining.
func successByApproval(o database.Observation) bool {
	return o.Approved
}

// successBySale is the success signal for listing-structure mining.
func successBySale(o database.Observation) bool {
	return o.Sales > 0
}
