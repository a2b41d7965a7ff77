package transcript

import (
	"encoding/json"
	"time"
)

// RoleType identifies the speaker of a transcript message.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
	RoleSystem    RoleType = "system"
	RoleFeedback  RoleType = "feedback"
)

// CategoryMixed is reported for sessions recorded without a
// category.
const CategoryMixed = "Mixed"

// Feedback is the post-interview assessment attached to a
// session. Score is nil when the producer did not record a
// numeric score. Fields as stored are kept in raw, and only the
// fields changed since decoding are rewritten on save.
type Feedback struct {
	Score        *float64
	MissedTopics []string
	Notes        string

	raw  map[string]json.RawMessage
	base feedbackValues
}

// feedbackValues records the decoded view of stored feedback.
type feedbackValues struct {
	score  *float64
	missed []string
	notes  string
}

// Message is one transcript entry. Raw holds the message exactly
// as the producer wrote it; the timestamp is probed from it
// because producers disagree on the field name.
type Message struct {
	Role    RoleType
	Content string
	Raw     json.RawMessage

	ts       time.Time
	hasTS    bool
	resolved bool
}

// Time returns the message instant, or false when no candidate
// timestamp field resolves.
func (m Message) Time() (time.Time, bool) {
	if m.resolved {
		return m.ts, m.hasTS
	}
	return ExtractTimestamp(m.Raw)
}

// Session is one recorded interview attempt.
type Session struct {
	ID            string
	UserName      string
	Timestamp     string // kept verbatim; see Time
	Messages      []Message
	Company       string
	Role          string
	Category      string
	QuestionCount *int
	Random        *bool
	Feedback      *Feedback

	// Extra holds top-level fields this package does not model,
	// so a load/save round trip does not drop them.
	Extra map[string]json.RawMessage

	// orig holds the modeled fields as stored. A field whose value
	// still matches base is written back from orig unchanged, so
	// values read as absent are never erased by a save.
	orig map[string]json.RawMessage
	base sessionValues
}

// sessionValues records the decoded view of a stored session.
type sessionValues struct {
	id            string
	userName      string
	timestamp     string
	company       string
	role          string
	category      string
	questionCount *int
	random        *bool
	messages      int
}

// Time parses the session timestamp.
func (s Session) Time() (time.Time, bool) {
	return ParseInstant(s.Timestamp)
}

// CategoryOrMixed returns the session category, substituting
// CategoryMixed when none was recorded.
func (s Session) CategoryOrMixed() string {
	if s.Category == "" {
		return CategoryMixed
	}
	return s.Category
}

// Score returns the numeric feedback score, if any.
func (s Session) Score() (float64, bool) {
	if s.Feedback == nil || s.Feedback.Score == nil {
		return 0, false
	}
	return *s.Feedback.Score, true
}
