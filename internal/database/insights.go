package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// UpsertInsight creates the insight if no row exists for its
// (type, patternKey), otherwise refreshes the existing row: scalar metrics
// are replaced with the fresh values, list-valued fields are unioned, the
// validation counter is incremented, and the last-validated timestamp is
// refreshed. The read-merge-write runs in one immediate transaction
// (the connection opens with _txlock=immediate), so concurrent runs
// serialize on the write lock, and the INSERT..ON CONFLICT DO UPDATE
// means no duplicate rows for the same key either way.
// Returns true if a new row was created.
func (db *DB) UpsertInsight(fresh *Insight) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	existing, err := getInsightByKeyTx(tx, fresh.Type, fresh.PatternKey)
	if err != nil {
		return false, err
	}

	row := *fresh
	if existing != nil {
		row.Niches = unionStrings(existing.Niches, fresh.Niches)
		row.ObservationIDs = unionStrings(existing.ObservationIDs, fresh.ObservationIDs)
		row.Payload = mergePayloads(existing.Payload, fresh.Payload)
		row.TimesValidated = existing.TimesValidated + 1
	} else {
		row.TimesValidated = 1
	}
	now := time.Now().UTC()
	row.LastValidatedAt = &now

	_, err = tx.Exec(
		`INSERT INTO insights (insight_type, pattern_key, category, title, description, payload,
			sample_size, confidence, success_rate, niches, timeframe, risk, observation_ids,
			times_validated, last_validated_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(insight_type, pattern_key) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			description = excluded.description,
			payload = excluded.payload,
			sample_size = excluded.sample_size,
			confidence = excluded.confidence,
			success_rate = excluded.success_rate,
			niches = excluded.niches,
			timeframe = excluded.timeframe,
			risk = excluded.risk,
			observation_ids = excluded.observation_ids,
			times_validated = excluded.times_validated,
			last_validated_at = excluded.last_validated_at,
			is_active = 1`,
		row.Type, row.PatternKey, row.Category, row.Title, row.Description, string(row.Payload),
		row.SampleSize, row.Confidence, row.SuccessRate, marshalStrings(row.Niches),
		row.Timeframe, row.Risk, marshalStrings(row.ObservationIDs),
		row.TimesValidated, formatTime(now),
	)
	if err != nil {
		return false, err
	}

	return existing == nil, tx.Commit()
}

// GetInsightByKey returns the insight for (insightType, patternKey), or
// nil if absent.
func (db *DB) GetInsightByKey(insightType, patternKey string) (*Insight, error) {
	rows, err := db.conn.Query(
		selectInsight+` WHERE insight_type = ? AND pattern_key = ?`,
		insightType, patternKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights, err := scanInsights(rows)
	if err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return nil, nil
	}
	return &insights[0], nil
}

// GetTopInsights returns the active insights of a type ordered by
// confidence DESC, optionally filtered to those applicable to a niche.
func (db *DB) GetTopInsights(insightType, niche string, limit int) ([]Insight, error) {
	query := selectInsight + ` WHERE insight_type = ? AND is_active = 1`
	args := []any{insightType}
	if niche != "" {
		query += ` AND niches LIKE ?`
		args = append(args, `%"`+niche+`"%`)
	}
	query += ` ORDER BY confidence DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// ListActiveInsights returns all active insights ordered by confidence.
func (db *DB) ListActiveInsights(limit int) ([]Insight, error) {
	rows, err := db.conn.Query(
		selectInsight+` WHERE is_active = 1 ORDER BY confidence DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInsights(rows)
}

// MarkInsightInactive clears the still-relevant flag.
func (db *DB) MarkInsightInactive(insightType, patternKey string) error {
	_, err := db.conn.Exec(
		"UPDATE insights SET is_active = 0 WHERE insight_type = ? AND pattern_key = ?",
		insightType, patternKey,
	)
	return err
}

const selectInsight = `SELECT id, insight_type, pattern_key, category, title, description, payload,
	sample_size, confidence, success_rate, niches, timeframe, risk, observation_ids,
	times_validated, last_validated_at, is_active, created_at
	FROM insights`

func getInsightByKeyTx(tx *sql.Tx, insightType, patternKey string) (*Insight, error) {
	rows, err := tx.Query(
		selectInsight+` WHERE insight_type = ? AND pattern_key = ?`,
		insightType, patternKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights, err := scanInsights(rows)
	if err != nil {
		return nil, err
	}
	if len(insights) == 0 {
		return nil, nil
	}
	return &insights[0], nil
}

func scanInsights(rows *sql.Rows) ([]Insight, error) {
	var insights []Insight
	for rows.Next() {
		var in Insight
		var payload, niches, obsIDs sql.NullString
		var category, timeframe, risk sql.NullString
		var lastValidated, created sql.NullString
		var active int
		if err := rows.Scan(&in.ID, &in.Type, &in.PatternKey, &category, &in.Title,
			&in.Description, &payload, &in.SampleSize, &in.Confidence, &in.SuccessRate,
			&niches, &timeframe, &risk, &obsIDs, &in.TimesValidated,
			&lastValidated, &active, &created); err != nil {
			return nil, err
		}
		in.Category = category.String
		in.Timeframe = timeframe.String
		in.Risk = risk.String
		in.IsActive = active != 0
		if payload.Valid {
			in.Payload = json.RawMessage(payload.String)
		}
		in.Niches = unmarshalStrings(niches.String)
		in.ObservationIDs = unmarshalStrings(obsIDs.String)
		if lastValidated.Valid {
			t := parseTime(lastValidated.String)
			in.LastValidatedAt = &t
		}
		if created.Valid {
			t := parseTime(created.String)
			in.CreatedAt = &t
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

// unionStrings merges two string lists preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// mergePayloads combines an existing payload with a freshly computed one.
// Scalar fields take the fresh value; string-array fields (example lists)
// are unioned so accumulated examples survive a refresh.
func mergePayloads(existing, fresh json.RawMessage) json.RawMessage {
	if len(existing) == 0 {
		return fresh
	}
	if len(fresh) == 0 {
		return existing
	}

	var oldMap, newMap map[string]any
	if err := json.Unmarshal(existing, &oldMap); err != nil {
		return fresh
	}
	if err := json.Unmarshal(fresh, &newMap); err != nil {
		return existing
	}

	for key, newVal := range newMap {
		newList, newOK := toStringList(newVal)
		oldList, oldOK := toStringList(oldMap[key])
		if newOK && oldOK {
			newMap[key] = unionStrings(oldList, newList)
		}
	}

	merged, err := json.Marshal(newMap)
	if err != nil {
		return fresh
	}
	return merged
}

func toStringList(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
