package wordbank

import (
	"fmt"
	"strings"
)

// Matcher decides whether a session's text contains a token.
type Matcher interface {
	Name() string
	// Compile prepares the lowercased session text for repeated
	// membership tests.
	Compile(text string) Haystack
}

// Haystack answers membership tests for one compiled text.
type Haystack interface {
	Contains(token string) bool
}

const (
	MatcherSubstring = "substring"
	MatcherToken     = "token"
)

// MatcherNames lists the names accepted by MatcherByName.
var MatcherNames = []string{MatcherSubstring, MatcherToken}

// MatcherByName returns the named matcher. The empty name
// selects the substring matcher.
func MatcherByName(name string) (Matcher, error) {
	switch name {
	case "", MatcherSubstring:
		return SubstringMatcher{}, nil
	case MatcherToken:
		return TokenMatcher{}, nil
	default:
		return nil, fmt.Errorf(
			"unknown matcher %q (supported: %s)",
			name, strings.Join(MatcherNames, ", "),
		)
	}
}

// SubstringMatcher matches a token anywhere in the text, so
// "react" also matches "reactive".
type SubstringMatcher struct{}

func (SubstringMatcher) Name() string { return MatcherSubstring }

func (SubstringMatcher) Compile(text string) Haystack {
	return substringHaystack(text)
}

type substringHaystack string

func (h substringHaystack) Contains(token string) bool {
	return strings.Contains(string(h), token)
}

// TokenMatcher matches only whole words, using the same split
// as Tokenize.
type TokenMatcher struct{}

func (TokenMatcher) Name() string { return MatcherToken }

func (TokenMatcher) Compile(text string) Haystack {
	words := make(tokenHaystack)
	for _, w := range split(text) {
		words[w] = struct{}{}
	}
	return words
}

type tokenHaystack map[string]struct{}

func (h tokenHaystack) Contains(token string) bool {
	_, ok := h[token]
	return ok
}
