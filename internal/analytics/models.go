package analytics

import "time"

// ParticipantSamples is the raw material for one leaderboard row: the clean
// reaction times in insertion order plus the total trial count (clean or not).
type ParticipantSamples struct {
	ParticipantID string
	Name          string
	CleanMs       []int
	Tries         int
}

type LeaderboardEntry struct {
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	BestMs        int     `json:"best_ms"`
	MeanMs        int     `json:"mean_ms"`
	MedianMs      int     `json:"median_ms"`
	Tries         int     `json:"tries"`
	Rank          int     `json:"rank"`
}

// RT60Entry is one finished 60-second run on the endurance board.
type RT60Entry struct {
	Name        string    `json:"name"`
	TotalClicks int       `json:"total_clicks"`
	BestMs      *int      `json:"best_ms"`
	AvgMs       *int      `json:"avg_ms"`
	PlayedAt    time.Time `json:"played_at"`
}

// CPSRow is a stored click-speed run before derived values are computed.
type CPSRow struct {
	Name        string
	Sets        [4]int
	DurationSec int
	PlayedAt    time.Time
}

type CPSEntry struct {
	Name        string    `json:"name"`
	SetCPS      []float64 `json:"set_cps"`
	BestCPS     float64   `json:"best_cps"`
	AvgCPS      float64   `json:"avg_cps"`
	TotalClicks int       `json:"total_clicks"`
	PlayedAt    time.Time `json:"played_at"`
}
