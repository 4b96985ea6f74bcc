package stats

import "time"

// WeekKey returns the start of the ISO week containing t, in UTC, as
// YYYY-MM-DD. All temporal partitioning runs in UTC so that period
// boundaries do not drift with the host timezone.
func WeekKey(t time.Time) string {
	u := t.UTC()
	// time.Weekday has Sunday == 0; ISO weeks start on Monday.
	offset := (int(u.Weekday()) + 6) % 7
	start := u.AddDate(0, 0, -offset)
	return start.Format("2006-01-02")
}

// MonthKey returns the calendar month of t in UTC as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthIndex returns the calendar month of t in UTC as 1-12.
func MonthIndex(t time.Time) int {
	return int(t.UTC().Month())
}

// PartitionByWeek buckets the given timestamps by ISO-week key. The values
// are indices into the input slice, preserving insertion order.
func PartitionByWeek(times []time.Time) map[string][]int {
	buckets := make(map[string][]int)
	for i, t := range times {
		key := WeekKey(t)
		buckets[key] = append(buckets[key], i)
	}
	return buckets
}

// PartitionByMonth buckets the given timestamps by YYYY-MM key. The values
// are indices into the input slice, preserving insertion order.
func PartitionByMonth(times []time.Time) map[string][]int {
	buckets := make(map[string][]int)
	for i, t := range times {
		key := MonthKey(t)
		buckets[key] = append(buckets[key], i)
	}
	return buckets
}

// DistinctWeeks counts the distinct ISO weeks covered by the timestamps.
// This is the period count fed to Estimator.Confidence.
func DistinctWeeks(times []time.Time) int {
	seen := make(map[string]struct{})
	for _, t := range times {
		seen[WeekKey(t)] = struct{}{}
	}
	return len(seen)
}
