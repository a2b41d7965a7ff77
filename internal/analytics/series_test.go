package analytics_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/transcript"
	tt "github.com/mockify/interviewstats/internal/transcripttest"
)

func Ptr[T any](v T) *T { return &v }

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		ms   *float64
		want string
	}{
		{nil, "—"},
		{Ptr(0.0), "0s"},
		{Ptr(499.0), "0s"},
		{Ptr(500.0), "1s"},
		{Ptr(59499.0), "59s"},
		{Ptr(59500.0), "1m 0s"},
		{Ptr(65000.0), "1m 5s"},
		{Ptr(3599000.0), "59m 59s"},
		{Ptr(3600000.0), "1h 0m"},
		{Ptr(3725000.0), "1h 2m"},
		{Ptr(90061000.0), "25h 1m"},
	}
	for _, tc := range tests {
		name := "nil"
		if tc.ms != nil {
			name = tc.want
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, analytics.HumanDuration(tc.ms))
		})
	}
}

func TestCategoryDistribution(t *testing.T) {
	sessions := []transcript.Session{
		tt.Session("1", tt.WithCategory("Technical")),
		tt.Session("2"),
		tt.Session("3", tt.WithCategory("Technical")),
		tt.Session("4", tt.WithCategory("Behavioral")),
	}
	want := []analytics.CategoryCount{
		{Category: "Technical", Sessions: 2},
		{Category: "Mixed", Sessions: 1},
		{Category: "Behavioral", Sessions: 1},
	}
	if diff := cmp.Diff(want, analytics.CategoryDistribution(sessions)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []analytics.CategoryCount{},
		analytics.CategoryDistribution(nil))
}

func TestScoreTrend(t *testing.T) {
	sessions := []transcript.Session{
		tt.Session("late", tt.WithScore(90),
			tt.WithTime(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))),
		tt.Session("nodate", tt.WithScore(10),
			tt.WithRawTimestamp("whenever")),
		tt.Session("unscored",
			tt.WithTime(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))),
		tt.Session("early", tt.WithScore(60),
			tt.WithTime(time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC))),
		tt.Session("nodate2", tt.WithScore(20),
			tt.WithRawTimestamp("")),
	}

	want := []analytics.TrendPoint{
		{SessionID: "early", Date: "2024-06-01", Score: 60},
		{SessionID: "late", Date: "2024-06-03", Score: 90},
		{SessionID: "nodate", Score: 10},
		{SessionID: "nodate2", Score: 20},
	}
	got := analytics.ScoreTrend(sessions, nil)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UTC mismatch (-want +got):\n%s", diff)
	}

	tokyo := time.FixedZone("JST", 9*60*60)
	got = analytics.ScoreTrend(sessions, tokyo)
	assert.Equal(t, "2024-06-02", got[0].Date)
}

func TestRecentSessions(t *testing.T) {
	var sessions []transcript.Session
	for _, id := range []string{"a", "b", "c"} {
		sessions = append(sessions, tt.Session(id, tt.WithMessages(
			tt.User("question "+id, tt.At(0)),
			tt.Assistant("answer "+id, tt.At(1000)),
		)))
	}
	sessions = append(sessions, tt.Session("empty"))

	got := analytics.RecentSessions(sessions, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "answer a", got[0].LastMessage)
	assert.Equal(t, transcript.FormatInstant(tt.Base), got[0].Timestamp)

	all := analytics.RecentSessions(sessions, 8)
	assert.Len(t, all, 4)
	assert.Empty(t, all[3].LastMessage)

	assert.Empty(t, analytics.RecentSessions(sessions, -1))
}
