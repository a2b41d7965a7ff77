// Package dashboard assembles the full analytics view from a
// session collection. Compute holds no state; callers invoke it
// again whenever any input changes.
package dashboard

import (
	"time"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/transcript"
	"github.com/mockify/interviewstats/internal/wordbank"
)

// RecentLimit is the number of sessions in the recent list.
const RecentLimit = 8

// Input is everything one dashboard computation depends on.
type Input struct {
	Sessions     []transcript.Session
	Filter       analytics.Filter
	Bank         wordbank.Bank // nil skips the cross index
	HalfLifeDays float64
	Matcher      wordbank.Matcher
	Now          time.Time
	Location     *time.Location
}

// Duration is a millisecond metric with its display form.
type Duration struct {
	Ms    *float64 `json:"ms"`
	Human string   `json:"human"`
}

func newDuration(ms float64, ok bool) Duration {
	if !ok {
		return Duration{Human: analytics.HumanDuration(nil)}
	}
	return Duration{Ms: &ms, Human: analytics.HumanDuration(&ms)}
}

// Dashboard is the computed view.
type Dashboard struct {
	TotalSessions  int                        `json:"total_sessions"`
	ScoredSessions int                        `json:"scored_sessions"`
	MeanScore      *float64                   `json:"mean_score"`
	MedianScore    *float64                   `json:"median_score"`
	RecencyScore   *float64                   `json:"recency_weighted_score"`
	HalfLifeDays   float64                    `json:"half_life_days"`
	AvgResponse    Duration                   `json:"avg_response"`
	LongestPause   Duration                   `json:"longest_pause"`
	Categories     []analytics.CategoryCount  `json:"category_distribution"`
	Trend          []analytics.TrendPoint     `json:"score_trend"`
	TopKeywords    []wordbank.KeywordCount    `json:"top_keywords"`
	Recent         []analytics.SessionSummary `json:"recent_sessions"`
	CompanyOptions []string                   `json:"company_options"`
	CategoryOpts   []string                   `json:"category_options"`
	Keywords       []wordbank.KeywordStat     `json:"keywords"`
	Matcher        string                     `json:"matcher"`
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Compute filters in.Sessions and derives every dashboard
// metric from the result. Filter option lists are taken from the
// unfiltered collection so a narrowed view can be widened again.
func Compute(in Input) Dashboard {
	halfLife := in.HalfLifeDays
	if halfLife <= 0 {
		halfLife = analytics.DefaultHalfLifeDays
	}
	matcher := in.Matcher
	if matcher == nil {
		matcher = wordbank.SubstringMatcher{}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	filtered := analytics.Apply(in.Sessions, in.Filter)
	scores := analytics.Scores(filtered)

	d := Dashboard{
		TotalSessions:  len(filtered),
		ScoredSessions: len(scores),
		MeanScore:      optional(analytics.Mean(scores)),
		MedianScore:    optional(analytics.Median(scores)),
		RecencyScore: optional(analytics.RecencyWeightedMean(
			analytics.ScoredSamples(filtered), halfLife, now,
		)),
		HalfLifeDays:   halfLife,
		Categories:     analytics.CategoryDistribution(filtered),
		Trend:          analytics.ScoreTrend(filtered, in.Location),
		TopKeywords:    wordbank.TopKeywords(filtered, wordbank.DefaultTopKeywords),
		Recent:         analytics.RecentSessions(filtered, RecentLimit),
		CompanyOptions: analytics.Companies(in.Sessions),
		CategoryOpts:   analytics.Categories(in.Sessions),
		Keywords:       []wordbank.KeywordStat{},
		Matcher:        matcher.Name(),
	}

	d.AvgResponse = newDuration(analytics.CorpusLatency(filtered))
	pause, ok := analytics.LongestPause(filtered)
	d.LongestPause = newDuration(analytics.Ms(pause), ok)

	if len(in.Bank) > 0 {
		d.Keywords = wordbank.SortedStats(
			wordbank.CrossIndex(in.Bank, filtered, matcher),
		)
	}
	return d
}
