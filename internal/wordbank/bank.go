package wordbank

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/mockify/interviewstats/internal/transcript"
)

const (
	// MaxContexts caps the snippets kept per token.
	MaxContexts = 10
	// SnippetRunes is the visible length of a context snippet.
	SnippetRunes = 120
	ellipsis     = "…"
)

// ErrInvalidBank is returned by Parse for a payload that is not
// a JSON object.
var ErrInvalidBank = errors.New("invalid word bank")

// Entry is the index record for one token.
type Entry struct {
	Count    int      `json:"count" yaml:"count"`
	Contexts []string `json:"contexts" yaml:"contexts"`
}

// Bank maps token to its entry.
type Bank map[string]*Entry

// Tokens returns the bank's tokens in sorted order.
func (b Bank) Tokens() []string {
	out := make([]string, 0, len(b))
	for tok := range b {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Snippet trims content and truncates it to SnippetRunes runes,
// marking a cut with an ellipsis.
func Snippet(content string) string {
	s := strings.TrimSpace(content)
	if utf8.RuneCountInString(s) <= SnippetRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == SnippetRunes {
			return s[:i] + ellipsis
		}
		n++
	}
	return s
}

// Rebuild indexes every message of every session from scratch.
// The result never shares state with a previous bank.
func Rebuild(sessions []transcript.Session) Bank {
	bank := make(Bank)
	for _, s := range sessions {
		for _, m := range s.Messages {
			toks := Tokenize(m.Content)
			if len(toks) == 0 {
				continue
			}
			snippet := Snippet(m.Content)
			for _, tok := range toks {
				e, ok := bank[tok]
				if !ok {
					e = &Entry{Contexts: []string{}}
					bank[tok] = e
				}
				e.Count++
				if len(e.Contexts) < MaxContexts {
					e.Contexts = append(e.Contexts, snippet)
				}
			}
		}
	}
	return bank
}

// Parse decodes an exported or persisted bank. Entries whose
// count is not a whole number of at least 1 are dropped, and
// non-string contexts are skipped.
func Parse(data []byte) (Bank, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidBank)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidBank)
	}
	bank := make(Bank)
	root.ForEach(func(key, v gjson.Result) bool {
		count := v.Get("count")
		if count.Type != gjson.Number || count.Num < 1 ||
			count.Num != math.Trunc(count.Num) {
			return true
		}
		e := &Entry{Count: int(count.Num), Contexts: []string{}}
		if ctx := v.Get("contexts"); ctx.IsArray() {
			for _, c := range ctx.Array() {
				if c.Type == gjson.String {
					e.Contexts = append(e.Contexts, c.Str)
				}
			}
		}
		bank[key.Str] = e
		return true
	})
	return bank, nil
}
