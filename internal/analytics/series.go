package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// NoData is rendered for metrics with no underlying samples.
const NoData = "—"

// CategoryCount is one bar of the category distribution.
type CategoryCount struct {
	Category string `json:"category"`
	Sessions int    `json:"sessions"`
}

// CategoryDistribution counts sessions per category in
// first-seen order.
func CategoryDistribution(
	sessions []transcript.Session,
) []CategoryCount {
	idx := make(map[string]int)
	out := []CategoryCount{}
	for _, s := range sessions {
		c := s.CategoryOrMixed()
		i, ok := idx[c]
		if !ok {
			i = len(out)
			idx[c] = i
			out = append(out, CategoryCount{Category: c})
		}
		out[i].Sessions++
	}
	return out
}

// TrendPoint is one scored session on the score trend.
type TrendPoint struct {
	SessionID string  `json:"session_id"`
	Date      string  `json:"date"`
	Score     float64 `json:"score"`
}

// ScoreTrend returns scored sessions in ascending timestamp
// order, with dates rendered in loc. The sort is stable, and
// sessions whose timestamp does not parse come last with an
// empty Date, keeping their input order.
func ScoreTrend(
	sessions []transcript.Session, loc *time.Location,
) []TrendPoint {
	if loc == nil {
		loc = time.UTC
	}
	type row struct {
		point TrendPoint
		at    time.Time
		dated bool
	}
	var rows []row
	for _, s := range sessions {
		v, ok := s.Score()
		if !ok {
			continue
		}
		at, dated := s.Time()
		p := TrendPoint{SessionID: s.ID, Score: v}
		if dated {
			p.Date = at.In(loc).Format(dateLayout)
		}
		rows = append(rows, row{point: p, at: at, dated: dated})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.dated != b.dated {
			return a.dated
		}
		return a.dated && a.at.Before(b.at)
	})

	out := make([]TrendPoint, len(rows))
	for i, r := range rows {
		out[i] = r.point
	}
	return out
}

// SessionSummary is a compact listing row for recent sessions.
type SessionSummary struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name,omitempty"`
	Role        string `json:"role,omitempty"`
	Timestamp   string `json:"timestamp"`
	LastMessage string `json:"last_message,omitempty"`
}

// RecentSessions summarizes the first n sessions.
func RecentSessions(
	sessions []transcript.Session, n int,
) []SessionSummary {
	n = min(max(n, 0), len(sessions))
	out := make([]SessionSummary, 0, n)
	for _, s := range sessions[:n] {
		sum := SessionSummary{
			ID:        s.ID,
			UserName:  s.UserName,
			Role:      s.Role,
			Timestamp: s.Timestamp,
		}
		if len(s.Messages) > 0 {
			sum.LastMessage = s.Messages[len(s.Messages)-1].Content
		}
		out = append(out, sum)
	}
	return out
}

// HumanDuration renders milliseconds as "Ns" under a minute,
// "Mm Ss" under an hour, and "Hh Mm" otherwise. Seconds are
// rounded half up. A nil input renders NoData.
func HumanDuration(ms *float64) string {
	if ms == nil {
		return NoData
	}
	secs := int64(math.Floor(*ms/1000 + 0.5))
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	mins := secs / 60
	if mins < 60 {
		return fmt.Sprintf("%dm %ds", mins, secs%60)
	}
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}
