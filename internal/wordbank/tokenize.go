// Package wordbank builds the persisted keyword index over a
// session corpus, the lighter top-keywords view, and the
// keyword-to-session cross index.
package wordbank

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mockify/interviewstats/internal/transcript"
)

// MinTokenLen is the shortest token kept by Tokenize.
const MinTokenLen = 3

// StopWords are common English function words excluded from
// every keyword view.
var StopWords = map[string]struct{}{
	"the": {}, "and": {}, "to": {}, "a": {}, "of": {}, "in": {},
	"is": {}, "that": {}, "it": {}, "for": {}, "on": {}, "you": {},
	"with": {}, "this": {}, "i": {}, "my": {}, "we": {}, "they": {},
	"be": {}, "are": {}, "as": {}, "an": {}, "have": {}, "has": {},
	"but": {}, "or": {}, "not": {}, "at": {}, "from": {},
}

func isAlnum(r rune) bool {
	return r < utf8.RuneSelf &&
		('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' ||
			'0' <= r && r <= '9')
}

// split lowercases text and cuts it on every run of characters
// outside [a-zA-Z0-9].
func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlnum(r)
	})
}

// Tokenize returns the keyword tokens of text in order,
// dropping short tokens and stop words.
func Tokenize(text string) []string {
	var out []string
	for _, w := range split(text) {
		if len(w) < MinTokenLen {
			continue
		}
		if _, stop := StopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// DefaultTopKeywords is the size of the dashboard keyword list.
const DefaultTopKeywords = 12

// KeywordCount is one row of the top-keywords view.
type KeywordCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// TopKeywords counts tokens in user and feedback messages and
// returns the n most frequent. Ties keep first-seen order.
func TopKeywords(sessions []transcript.Session, n int) []KeywordCount {
	idx := make(map[string]int)
	counts := []KeywordCount{}
	for _, s := range sessions {
		for _, m := range s.Messages {
			if m.Role != transcript.RoleUser &&
				m.Role != transcript.RoleFeedback {
				continue
			}
			for _, tok := range Tokenize(m.Content) {
				i, ok := idx[tok]
				if !ok {
					i = len(counts)
					idx[tok] = i
					counts = append(counts, KeywordCount{Token: tok})
				}
				counts[i].Count++
			}
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts[:min(max(n, 0), len(counts))]
}
