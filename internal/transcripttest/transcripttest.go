// Package transcripttest provides shared session fixture
// builders for the analytics, wordbank, store and server test
// packages.
package transcripttest

import (
	"encoding/json"
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// Base is the reference instant fixtures are laid out from.
var Base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// At returns Base shifted by ms milliseconds.
func At(ms int64) time.Time {
	return Base.Add(time.Duration(ms) * time.Millisecond)
}

// User returns a user message stamped at ts.
func User(content string, ts time.Time) transcript.Message {
	return transcript.NewMessage(transcript.RoleUser, content, ts)
}

// Assistant returns an assistant message stamped at ts.
func Assistant(content string, ts time.Time) transcript.Message {
	return transcript.NewMessage(
		transcript.RoleAssistant, content, ts,
	)
}

// Untimed returns a message with no timestamp field.
func Untimed(role transcript.RoleType, content string) transcript.Message {
	return transcript.NewMessage(role, content, time.Time{})
}

// Raw decodes a message from arbitrary fields, for producers
// that use non-canonical timestamp names.
func Raw(fields map[string]any) transcript.Message {
	var m transcript.Message
	if err := json.Unmarshal([]byte(mustMarshal(fields)), &m); err != nil {
		panic(err)
	}
	return m
}

// Option customizes a fixture session.
type Option func(*transcript.Session)

// Session builds a session stamped at Base.
func Session(id string, opts ...Option) transcript.Session {
	s := transcript.Session{
		ID:        id,
		UserName:  "Candidate",
		Timestamp: transcript.FormatInstant(Base),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTime sets the session timestamp.
func WithTime(ts time.Time) Option {
	return func(s *transcript.Session) {
		s.Timestamp = transcript.FormatInstant(ts)
	}
}

// WithRawTimestamp sets the timestamp string verbatim.
func WithRawTimestamp(ts string) Option {
	return func(s *transcript.Session) { s.Timestamp = ts }
}

// WithScore attaches feedback with the given score.
func WithScore(score float64) Option {
	return func(s *transcript.Session) {
		if s.Feedback == nil {
			s.Feedback = &transcript.Feedback{}
		}
		s.Feedback.Score = &score
	}
}

// WithCompany sets the company.
func WithCompany(c string) Option {
	return func(s *transcript.Session) { s.Company = c }
}

// WithCategory sets the category.
func WithCategory(c string) Option {
	return func(s *transcript.Session) { s.Category = c }
}

// WithMessages sets the transcript.
func WithMessages(msgs ...transcript.Message) Option {
	return func(s *transcript.Session) { s.Messages = msgs }
}

// SessionsJSON marshals sessions as a pastInterviews blob.
func SessionsJSON(sessions ...transcript.Session) string {
	data, err := transcript.EncodeSessions(sessions)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
