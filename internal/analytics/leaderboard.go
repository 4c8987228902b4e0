// Package analytics turns stored trials and summaries into ranked boards.
// Ranking itself is pure so it can be tested without a database.
package analytics

import (
	"sort"
	"time"

	"reactlab/internal/stats"
)

// BuildLeaderboard ranks participants by best clean reaction, ascending.
// Participants without a single clean trial are dropped; ties keep the input
// (registration) order.
func BuildLeaderboard(samples []ParticipantSamples) []LeaderboardEntry {
	var entries []LeaderboardEntry
	for _, ps := range samples {
		summary := stats.Summarize(ps.CleanMs)
		if !summary.Valid {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			ParticipantID: ps.ParticipantID,
			Name:          ps.Name,
			BestMs:        summary.BestMs,
			MeanMs:        summary.MeanMs,
			MedianMs:      summary.MedianMs,
			Tries:         ps.Tries,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BestMs < entries[j].BestMs
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// BuildCPSOverview derives per-set and aggregate click speeds from stored
// runs and ranks them by best set, descending. Ties keep input order.
func BuildCPSOverview(rows []CPSRow) []CPSEntry {
	var entries []CPSEntry
	for _, r := range rows {
		window := time.Duration(r.DurationSec) * time.Second
		var (
			setCPS []float64
			total  int
		)
		for _, clicks := range r.Sets {
			setCPS = append(setCPS, stats.CPS(clicks, window))
			total += clicks
		}
		entries = append(entries, CPSEntry{
			Name:        r.Name,
			SetCPS:      setCPS,
			BestCPS:     stats.MaxFloat(setCPS),
			AvgCPS:      stats.MeanFloat2(setCPS),
			TotalClicks: total,
			PlayedAt:    r.PlayedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BestCPS > entries[j].BestCPS
	})
	return entries
}
