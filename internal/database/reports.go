package database

import (
	"database/sql"
)

// InsertInsightReport inserts or replaces the insight report for a track.
func (db *DB) InsertInsightReport(track, statsJSON, insightsJSON, bodyMarkdown string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO insight_reports (track, stats_json, insights_json, body_markdown)
		VALUES (?, ?, ?, ?)`,
		track, statsJSON, insightsJSON, bodyMarkdown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetInsightReport returns the insight report for a track, or nil.
func (db *DB) GetInsightReport(track string) (*InsightReport, error) {
	row := db.conn.QueryRow(
		`SELECT id, track, stats_json, insights_json, body_markdown, generated_at
		FROM insight_reports WHERE track = ?`, track,
	)

	var r InsightReport
	if err := row.Scan(&r.ID, &r.Track, &r.StatsJSON, &r.InsightsJSON, &r.BodyMarkdown, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// InsertRunReport records a completed phase invocation.
func (db *DB) InsertRunReport(phase, summary string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO run_reports (phase, summary) VALUES (?, ?)", phase, summary,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecentRuns returns the most recent phase invocations, newest first.
func (db *DB) GetRecentRuns(limit int) ([]RunReport, error) {
	rows, err := db.conn.Query(
		"SELECT id, phase, summary, ran_at FROM run_reports ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.ID, &r.Phase, &r.Summary, &r.RanAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM lookups", &s.LookupsTotal},
		{"SELECT COUNT(*) FROM lookups WHERE status = 'ok'", &s.LookupsOK},
		{"SELECT COUNT(*) FROM lookups WHERE status = 'not_found'", &s.LookupsNotFound},
		{"SELECT COUNT(*) FROM lookups WHERE status = 'failed'", &s.LookupsFailed},
		{"SELECT COUNT(*) FROM insight_reports", &s.InsightReports},
		{"SELECT COUNT(*) FROM run_reports", &s.Runs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
