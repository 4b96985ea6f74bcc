package market

import "fmt"

// Entry score thresholds.
const (
	entryBaseScore     = 50
	enterThreshold     = 70
	cautionThreshold   = 40
	lowReviewsCeiling  = 20
	highReviewsFloor   = 100
	manySpikesFloor    = 5
)

// EntryDecision is the should-I-enter-this-niche verdict.
type EntryDecision struct {
	Score          int
	Recommendation string // "enter", "caution", "avoid"
	Reason         string
	Confidence     int // 0-100, grows with evidence volume
}

// ScoreEntry rates a niche as an entry opportunity from its saturation
// level, mean review depth, and recent rank spikes.
func ScoreEntry(saturation string, meanReviews float64, spiking, listingCount int) EntryDecision {
	score := entryBaseScore
	var reasons []string

	switch saturation {
	case "low":
		score += 20
		reasons = append(reasons, "low competition")
	case "medium":
		score += 5
		reasons = append(reasons, "moderate competition")
	case "high":
		score -= 15
		reasons = append(reasons, "crowded market")
	case "oversaturated":
		score -= 30
		reasons = append(reasons, "oversaturated market")
	}

	if meanReviews > 0 && meanReviews < lowReviewsCeiling {
		score += 20
		reasons = append(reasons, "incumbents have few reviews")
	} else if meanReviews > highReviewsFloor {
		score -= 20
		reasons = append(reasons, "entrenched incumbents")
	}

	if spiking > manySpikesFloor {
		score += 15
		reasons = append(reasons, fmt.Sprintf("%d listings spiking", spiking))
	} else if spiking > 0 {
		score += 5
		reasons = append(reasons, "some demand movement")
	}

	d := EntryDecision{Score: score}
	switch {
	case score >= enterThreshold:
		d.Recommendation = "enter"
	case score >= cautionThreshold:
		d.Recommendation = "caution"
	default:
		d.Recommendation = "avoid"
	}

	d.Confidence = 2 * listingCount
	if d.Confidence > 100 {
		d.Confidence = 100
	}

	if len(reasons) == 0 {
		d.Reason = "no market signals yet"
	} else {
		d.Reason = joinReasons(reasons)
	}
	return d
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
