package stats

import "math"

// wilsonZ is the one-sided 95% normal quantile used for the lower
// confidence bound on an observed success rate.
const wilsonZ = 1.645

const (
	sampleBoostCap   = 0.10
	temporalBoostCap = 0.10
)

// Estimator computes a conservative confidence score for a pattern from
// its success/trial counts and the number of distinct calendar periods it
// spans. It is pure: every miner shares it, and any change here shifts
// which patterns clear validation.
type Estimator struct {
	MinSampleSize int
	MinPeriods    int
}

// NewEstimator creates an Estimator with the given validation minimums.
func NewEstimator(minSampleSize, minPeriods int) Estimator {
	if minSampleSize < 1 {
		minSampleSize = 1
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	return Estimator{MinSampleSize: minSampleSize, MinPeriods: minPeriods}
}

// Confidence returns a score in [0,1] for success successes out of total
// trials spanning periods distinct calendar periods.
//
// The base is the Wilson-score lower confidence bound on success/total, so
// a small sample cannot produce an artificially high score. Two bounded
// boosts are added on top: a sample-size boost growing logarithmically in
// total relative to the minimum sample size, and a temporal-consistency
// boost rewarding recurrence across distinct periods rather than within a
// single burst.
func (e Estimator) Confidence(success, total, periods int) float64 {
	if total == 0 {
		return 0
	}
	if success < 0 {
		success = 0
	}
	if success > total {
		success = total
	}

	base := wilsonLowerBound(success, total)

	sampleBoost := sampleBoostCap * math.Log2(1+float64(total)/float64(e.MinSampleSize))
	if sampleBoost > sampleBoostCap {
		sampleBoost = sampleBoostCap
	}

	temporalBoost := 0.0
	if periods > e.MinPeriods {
		temporalBoost = temporalBoostCap * float64(periods-e.MinPeriods)
		if temporalBoost > temporalBoostCap {
			temporalBoost = temporalBoostCap
		}
	}

	return clamp01(base + sampleBoost + temporalBoost)
}

// wilsonLowerBound computes the Wilson-score lower confidence bound on the
// observed rate success/total.
func wilsonLowerBound(success, total int) float64 {
	n := float64(total)
	p := float64(success) / n
	z := wilsonZ
	z2 := z * z

	center := p + z2/(2*n)
	margin := z * math.Sqrt((p*(1-p)+z2/(4*n))/n)
	return (center - margin) / (1 + z2/n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
