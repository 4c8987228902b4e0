package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportCSV writes the leaderboard with a fixed header. Median and rank stay
// out of the export on purpose; downstream spreadsheets rely on the columns.
func ExportCSV(w io.Writer, entries []LeaderboardEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "best_ms", "mean_ms", "tries"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.Name,
			strconv.Itoa(e.BestMs),
			strconv.Itoa(e.MeanMs),
			strconv.Itoa(e.Tries),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
