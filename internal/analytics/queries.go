package analytics

import (
	"database/sql"
	"fmt"

	"reactlab/internal/db"
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// FetchParticipantSamples loads every active participant's trials in
// registration order, clean values in insertion order. Trials whose clean
// value is NULL still count toward Tries.
func (q *Queries) FetchParticipantSamples() ([]ParticipantSamples, error) {
	rows, err := q.DB.Query(`
		SELECT p.id, p.name, t.rt_ms_clean
		FROM participants p
		JOIN trials t ON t.participant_id = p.id AND NOT t.deleted
		WHERE NOT p.deleted
		ORDER BY p.created_at, p.id, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("fetching participant samples: %w", err)
	}
	defer rows.Close()

	var out []ParticipantSamples
	for rows.Next() {
		var (
			id, name string
			clean    sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &clean); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ParticipantID != id {
			out = append(out, ParticipantSamples{ParticipantID: id, Name: name})
		}
		ps := &out[len(out)-1]
		ps.Tries++
		if clean.Valid {
			ps.CleanMs = append(ps.CleanMs, int(clean.Int64))
		}
	}
	return out, rows.Err()
}

// Leaderboard fetches and ranks the single-trial board.
func (q *Queries) Leaderboard() ([]LeaderboardEntry, error) {
	samples, err := q.FetchParticipantSamples()
	if err != nil {
		return nil, err
	}
	return BuildLeaderboard(samples), nil
}

// RT60Overview lists finished 60-second runs, busiest first.
func (q *Queries) RT60Overview() ([]RT60Entry, error) {
	rows, err := q.DB.Query(`
		SELECT p.name, r.total_clicks, r.best_ms, r.avg_ms, r.created_at
		FROM rt60_sessions r
		JOIN participants p ON p.id = r.participant_id AND NOT p.deleted
		WHERE NOT r.deleted
		ORDER BY r.total_clicks DESC, r.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("fetching rt60 overview: %w", err)
	}
	defer rows.Close()

	var out []RT60Entry
	for rows.Next() {
		var e RT60Entry
		if err := rows.Scan(&e.Name, &e.TotalClicks, &e.BestMs, &e.AvgMs, &e.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CPSOverview lists finished click-speed runs ranked by best set.
func (q *Queries) CPSOverview() ([]CPSEntry, error) {
	rows, err := q.DB.Query(`
		SELECT p.name, c.set1, c.set2, c.set3, c.set4, c.duration_sec, c.created_at
		FROM cps_sessions c
		JOIN participants p ON p.id = c.participant_id AND NOT p.deleted
		WHERE NOT c.deleted
		ORDER BY c.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("fetching cps overview: %w", err)
	}
	defer rows.Close()

	var raw []CPSRow
	for rows.Next() {
		var r CPSRow
		if err := rows.Scan(&r.Name, &r.Sets[0], &r.Sets[1], &r.Sets[2], &r.Sets[3], &r.DurationSec, &r.PlayedAt); err != nil {
			return nil, err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return BuildCPSOverview(raw), nil
}
