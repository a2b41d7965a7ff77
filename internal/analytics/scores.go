package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// DefaultHalfLifeDays is the decay half-life used when none is
// configured.
const DefaultHalfLifeDays = 14.0

const msPerDay = 24 * 60 * 60 * 1000

// Scores returns the numeric feedback scores, in session order.
func Scores(sessions []transcript.Session) []float64 {
	out := []float64{}
	for _, s := range sessions {
		if v, ok := s.Score(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the arithmetic mean, or false for an empty set.
func Mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), true
}

// Median returns the middle value, averaging the two middle
// values for an even-sized set. xs is not modified.
func Median(xs []float64) (float64, bool) {
	n := len(xs)
	if n == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2, true
	}
	return sorted[n/2], true
}

// ScoredSample is a score with the instant it was recorded.
type ScoredSample struct {
	Score   float64
	At      time.Time
	HasTime bool
}

// ScoredSamples pairs each numeric score with its session
// timestamp.
func ScoredSamples(sessions []transcript.Session) []ScoredSample {
	out := []ScoredSample{}
	for _, s := range sessions {
		v, ok := s.Score()
		if !ok {
			continue
		}
		at, hasTime := s.Time()
		out = append(out, ScoredSample{
			Score: v, At: at, HasTime: hasTime,
		})
	}
	return out
}

// RecencyWeightedMean weights each sample by
// exp(-ln2 * age / halfLife) relative to now. Samples without a
// time, or stamped in the future, have age zero. A non-positive
// halfLifeDays falls back to DefaultHalfLifeDays.
func RecencyWeightedMean(
	samples []ScoredSample, halfLifeDays float64, now time.Time,
) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	if halfLifeDays <= 0 || math.IsNaN(halfLifeDays) {
		halfLifeDays = DefaultHalfLifeDays
	}
	halfLifeMs := halfLifeDays * msPerDay

	// Work in log space and normalize by the largest weight so
	// very old samples cannot underflow every weight to zero.
	logW := make([]float64, len(samples))
	maxLogW := math.Inf(-1)
	for i, s := range samples {
		var ageMs float64
		if s.HasTime {
			ageMs = float64(now.Sub(s.At)) / float64(time.Millisecond)
		}
		if ageMs < 0 {
			ageMs = 0
		}
		logW[i] = -math.Ln2 * ageMs / halfLifeMs
		if logW[i] > maxLogW {
			maxLogW = logW[i]
		}
	}

	var num, den float64
	for i, s := range samples {
		w := math.Exp(logW[i] - maxLogW)
		num += w * s.Score
		den += w
	}
	return num / den, true
}
