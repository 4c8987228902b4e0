package db

import (
	"fmt"
)

// RT60Summary is one finished 60-second run, denormalized to a single row.
// Best and Avg are nil for a run with no valid reactions.
type RT60Summary struct {
	TotalClicks int
	BestMs      *int
	AvgMs       *int
}

// CPSSummary is one finished click-speed run: per-set click counts plus the
// window length they were counted over.
type CPSSummary struct {
	Sets        [4]int
	DurationSec int
}

func (d *DB) InsertRT60Summary(participantID string, s RT60Summary) error {
	_, err := d.conn.Exec(`
		INSERT INTO rt60_sessions (participant_id, total_clicks, best_ms, avg_ms)
		VALUES ($1, $2, $3, $4)
	`, participantID, s.TotalClicks, s.BestMs, s.AvgMs)
	if err != nil {
		return fmt.Errorf("inserting rt60 summary: %w", err)
	}
	return nil
}

func (d *DB) InsertCPSSummary(participantID string, s CPSSummary) error {
	_, err := d.conn.Exec(`
		INSERT INTO cps_sessions (participant_id, set1, set2, set3, set4, duration_sec)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, participantID, s.Sets[0], s.Sets[1], s.Sets[2], s.Sets[3], s.DurationSec)
	if err != nil {
		return fmt.Errorf("inserting cps summary: %w", err)
	}
	return nil
}
