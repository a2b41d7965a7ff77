package wordbank

import (
	"sort"
	"strings"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/transcript"
)

// KeywordStat aggregates the sessions that contain one bank
// token. AvgScore and AvgRespMs are nil when no matching session
// carries a score or a latency pair.
type KeywordStat struct {
	Token     string   `json:"token"`
	Count     int      `json:"count"`
	Sessions  []string `json:"sessions"`
	AvgScore  *float64 `json:"avg_score"`
	AvgRespMs *float64 `json:"avg_resp_ms"`
}

type indexedSession struct {
	id       string
	haystack Haystack
	score    float64
	scored   bool
	latMs    []float64
}

// SessionText returns the lowercased message contents of s joined
// with single spaces.
func SessionText(s transcript.Session) string {
	parts := make([]string, len(s.Messages))
	for i, m := range s.Messages {
		parts[i] = m.Content
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// CrossIndex maps every bank token to statistics over the
// sessions that contain it. A nil matcher means substring
// matching.
func CrossIndex(
	bank Bank, sessions []transcript.Session, m Matcher,
) map[string]KeywordStat {
	if m == nil {
		m = SubstringMatcher{}
	}
	indexed := make([]indexedSession, len(sessions))
	for i, s := range sessions {
		is := indexedSession{
			id:       s.ID,
			haystack: m.Compile(SessionText(s)),
		}
		is.score, is.scored = s.Score()
		for _, d := range analytics.ResponseLatencies(s) {
			is.latMs = append(is.latMs, analytics.Ms(d))
		}
		indexed[i] = is
	}

	out := make(map[string]KeywordStat, len(bank))
	for tok, e := range bank {
		st := KeywordStat{Token: tok, Sessions: []string{}}
		if e != nil {
			st.Count = e.Count
		}
		var scores, lat []float64
		for _, is := range indexed {
			if !is.haystack.Contains(tok) {
				continue
			}
			st.Sessions = append(st.Sessions, is.id)
			if is.scored {
				scores = append(scores, is.score)
			}
			lat = append(lat, is.latMs...)
		}
		if v, ok := analytics.Mean(scores); ok {
			st.AvgScore = &v
		}
		if v, ok := analytics.Mean(lat); ok {
			st.AvgRespMs = &v
		}
		out[tok] = st
	}
	return out
}

// SortedStats lists index by descending count, then token.
func SortedStats(index map[string]KeywordStat) []KeywordStat {
	out := make([]KeywordStat, 0, len(index))
	for _, st := range index {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Token < out[j].Token
	})
	return out
}
