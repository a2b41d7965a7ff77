package analytics

import (
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// ResponseLatencies pairs each user message with the first later
// assistant message and returns the positive gaps. A pair is
// dropped when either timestamp is missing or the gap is not
// positive. Message order is taken as conversation order.
func ResponseLatencies(s transcript.Session) []time.Duration {
	var out []time.Duration
	msgs := s.Messages
	for i := range msgs {
		if msgs[i].Role != transcript.RoleUser {
			continue
		}
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].Role != transcript.RoleAssistant {
				continue
			}
			asked, ok1 := msgs[i].Time()
			answered, ok2 := msgs[j].Time()
			if ok1 && ok2 {
				if gap := answered.Sub(asked); gap > 0 {
					out = append(out, gap)
				}
			}
			break
		}
	}
	return out
}

// LatencyStat summarizes the response latencies of one session.
type LatencyStat struct {
	MeanMs *float64 `json:"mean_ms"`
	Pairs  int      `json:"pairs"`
}

// SessionLatency returns the mean latency and pair count for s.
func SessionLatency(s transcript.Session) LatencyStat {
	gaps := ResponseLatencies(s)
	mean, ok := Mean(durationsMs(gaps))
	st := LatencyStat{Pairs: len(gaps)}
	if ok {
		st.MeanMs = &mean
	}
	return st
}

// CorpusLatency returns the mean over every latency pair of every
// session, in milliseconds. It weights sessions by pair count.
func CorpusLatency(sessions []transcript.Session) (float64, bool) {
	var all []float64
	for _, s := range sessions {
		all = append(all, durationsMs(ResponseLatencies(s))...)
	}
	return Mean(all)
}

// SessionPause returns the longest gap between consecutive
// timestamped messages of s. Messages without a timestamp are
// skipped, so their neighbours count as consecutive.
func SessionPause(s transcript.Session) (time.Duration, bool) {
	var longest time.Duration
	var prev time.Time
	havePrev := false
	for _, m := range s.Messages {
		ts, ok := m.Time()
		if !ok {
			continue
		}
		if havePrev {
			if gap := ts.Sub(prev); gap > longest {
				longest = gap
			}
		}
		prev = ts
		havePrev = true
	}
	return longest, longest > 0
}

// LongestPause returns the longest SessionPause across sessions.
func LongestPause(sessions []transcript.Session) (time.Duration, bool) {
	var longest time.Duration
	for _, s := range sessions {
		if p, ok := SessionPause(s); ok && p > longest {
			longest = p
		}
	}
	return longest, longest > 0
}

// Ms converts a duration to fractional milliseconds.
func Ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func durationsMs(ds []time.Duration) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = Ms(d)
	}
	return out
}
