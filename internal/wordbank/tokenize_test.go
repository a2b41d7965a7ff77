package wordbank

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mockify/interviewstats/internal/transcript"
	tt "github.com/mockify/interviewstats/internal/transcripttest"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"stop words and short tokens", "I am at the API and it is OK", []string{"api"}},
		{"punctuation runs", "React,  Node.js--and_Go!!", []string{"react", "node"}},
		{"digits kept", "Scaled to 100k QPS in 2023", []string{"scaled", "100k", "qps", "2023"}},
		{"non-ascii separates", "naïve café", []string{"caf"}},
		{"apostrophes split", "let's discuss", []string{"let", "discuss"}},
		{"repeats kept", "go go golang golang", []string{"golang", "golang"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tc.text, diff)
			}
		})
	}
}

func TestStopWordsExcluded(t *testing.T) {
	for w := range StopWords {
		assert.Empty(t, Tokenize(w+" "+w), w)
	}
}

func TestTopKeywords(t *testing.T) {
	sessions := []transcript.Session{
		tt.Session("a", tt.WithMessages(
			tt.User("kubernetes operators and golang", tt.At(0)),
			tt.Assistant("kubernetes kubernetes kubernetes", tt.At(1000)),
			tt.Untimed(transcript.RoleFeedback, "golang depth was good"),
		)),
		tt.Session("b", tt.WithMessages(
			tt.User("operators again", tt.At(0)),
			tt.Untimed(transcript.RoleSystem, "golang golang golang"),
		)),
	}

	got := TopKeywords(sessions, 3)
	want := []KeywordCount{
		{Token: "operators", Count: 2},
		{Token: "golang", Count: 2},
		{Token: "kubernetes", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	all := TopKeywords(sessions, DefaultTopKeywords)
	assert.Len(t, all, 7)
	assert.Empty(t, TopKeywords(nil, DefaultTopKeywords))
	assert.Empty(t, TopKeywords(sessions, 0))
}
