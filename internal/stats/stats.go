// Package stats holds the pure latency/click-rate arithmetic shared by the
// timing engines and the leaderboard builder.
package stats

import (
	"math"
	"sort"
	"time"
)

// Plausible human reaction bounds in milliseconds. Samples outside the range
// keep their raw value but are excluded from ranking.
const (
	CleanMinMs = 80
	CleanMaxMs = 2000
)

// Classify applies the clean/raw split to a reaction time. The raw value is
// always at least 1ms; clean is nil outside [CleanMinMs, CleanMaxMs]. Applied
// once at write time and never recomputed.
func Classify(rtMs float64) (raw int, clean *int) {
	raw = int(math.Round(rtMs))
	if raw < 1 {
		raw = 1
	}
	if rtMs < CleanMinMs || rtMs > CleanMaxMs {
		return raw, nil
	}
	c := int(math.Round(rtMs))
	return raw, &c
}

// Median returns the middle sample, or the rounded average of the two middle
// samples for an even count. Zero for an empty slice.
func Median(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int, len(samples))
	copy(sorted, samples)
	sort.Ints(sorted)
	m := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[m]
	}
	return int(math.Round(float64(sorted[m-1]+sorted[m]) / 2))
}

// MeanRound returns the arithmetic mean rounded to the nearest int.
func MeanRound(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range samples {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(samples))))
}

// Min returns the smallest sample, or zero for an empty slice.
func Min(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	best := samples[0]
	for _, s := range samples[1:] {
		if s < best {
			best = s
		}
	}
	return best
}

// Summary is the aggregate of one run's latency samples. Valid is false when
// no samples were recorded; the zero values then mean "no valid reactions",
// not a real measurement.
type Summary struct {
	BestMs   int
	MeanMs   int
	MedianMs int
	Tries    int
	Valid    bool
}

func Summarize(samples []int) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	return Summary{
		BestMs:   Min(samples),
		MeanMs:   MeanRound(samples),
		MedianMs: Median(samples),
		Tries:    len(samples),
		Valid:    true,
	}
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CPS computes clicks-per-second over a window, rounded to two decimals.
func CPS(clicks int, window time.Duration) float64 {
	secs := window.Seconds()
	if secs <= 0 {
		return 0
	}
	return Round2(float64(clicks) / secs)
}

// MaxFloat returns the largest value, or zero for an empty slice.
func MaxFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// MeanFloat2 returns the mean rounded to two decimals.
func MeanFloat2(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return Round2(sum / float64(len(values)))
}
