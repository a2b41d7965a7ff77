package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a persisted session collection
// is not a JSON array.
var ErrMalformed = errors.New("malformed session collection")

// sessionFields are the top-level keys decoded into Session
// fields; every other key is preserved in Session.Extra.
var sessionFields = map[string]bool{
	"id":            true,
	"userName":      true,
	"timestamp":     true,
	"messages":      true,
	"company":       true,
	"role":          true,
	"category":      true,
	"questionCount": true,
	"random":        true,
	"feedback":      true,
}

// DecodeSessions parses a JSON array of session records. Array
// elements that are not objects are skipped and counted. The
// returned slice is never nil on success.
func DecodeSessions(data []byte) ([]Session, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, 0, fmt.Errorf(
			"%w: top-level value is not an array", ErrMalformed,
		)
	}

	sessions := []Session{}
	skipped := 0
	root.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			skipped++
			return true
		}
		sessions = append(sessions, decodeSession(v))
		return true
	})
	return sessions, skipped, nil
}

// DecodeSession parses a single session object.
func DecodeSession(data []byte) (Session, error) {
	if !gjson.ValidBytes(data) {
		return Session{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	v := gjson.ParseBytes(data)
	if !v.IsObject() {
		return Session{}, fmt.Errorf(
			"%w: session is not an object", ErrMalformed,
		)
	}
	return decodeSession(v), nil
}

// DecodeBatch parses an ingestion payload: either one session
// object or an array of them. Non-object array elements are
// skipped.
func DecodeBatch(data []byte) ([]Session, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		s, err := DecodeSession([]byte(trimmed))
		if err != nil {
			return nil, err
		}
		return []Session{s}, nil
	}
	sessions, _, err := DecodeSessions([]byte(trimmed))
	return sessions, err
}

// EncodeSessions serializes the collection as a JSON array.
func EncodeSessions(sessions []Session) ([]byte, error) {
	if sessions == nil {
		sessions = []Session{}
	}
	return json.Marshal(sessions)
}

func decodeSession(v gjson.Result) Session {
	s := Session{
		ID:       scalarString(v.Get("id")),
		UserName: v.Get("userName").Str,
		Company:  v.Get("company").Str,
		Role:     v.Get("role").Str,
		Category: v.Get("category").Str,
	}

	s.Timestamp = scalarString(v.Get("timestamp"))

	if qc := v.Get("questionCount"); qc.Type == gjson.Number {
		n := int(qc.Int())
		s.QuestionCount = &n
	}
	if r := v.Get("random"); r.IsBool() {
		b := r.Bool()
		s.Random = &b
	}
	if fb := v.Get("feedback"); fb.IsObject() {
		s.Feedback = decodeFeedback(fb)
	}

	msgs := v.Get("messages")
	s.Messages = make([]Message, 0, len(msgs.Array()))
	if msgs.IsArray() {
		msgs.ForEach(func(_, m gjson.Result) bool {
			s.Messages = append(s.Messages, decodeMessage(m))
			return true
		})
	}

	s.orig = make(map[string]json.RawMessage)
	v.ForEach(func(key, val gjson.Result) bool {
		if sessionFields[key.Str] {
			s.orig[key.Str] = json.RawMessage(val.Raw)
			return true
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[key.Str] = json.RawMessage(val.Raw)
		return true
	})
	s.base = sessionValues{
		id:            s.ID,
		userName:      s.UserName,
		timestamp:     s.Timestamp,
		company:       s.Company,
		role:          s.Role,
		category:      s.Category,
		questionCount: s.QuestionCount,
		random:        s.Random,
		messages:      len(s.Messages),
	}
	return s
}

func decodeFeedback(v gjson.Result) *Feedback {
	fb := &Feedback{
		Notes: v.Get("notes").Str,
		raw:   make(map[string]json.RawMessage),
	}
	if score := v.Get("score"); score.Type == gjson.Number {
		f := score.Float()
		fb.Score = &f
	}
	v.Get("missedTopics").ForEach(func(_, t gjson.Result) bool {
		if t.Type == gjson.String {
			fb.MissedTopics = append(fb.MissedTopics, t.Str)
		}
		return true
	})
	v.ForEach(func(key, val gjson.Result) bool {
		fb.raw[key.Str] = json.RawMessage(val.Raw)
		return true
	})
	fb.base = feedbackValues{
		score:  fb.Score,
		missed: slices.Clone(fb.MissedTopics),
		notes:  fb.Notes,
	}
	return fb
}

// MarshalJSON writes the stored feedback object back with only
// the fields changed since decoding replaced.
func (f Feedback) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.raw)+3)
	for k, v := range f.raw {
		out[k] = v
	}
	put := func(key string, changed, empty bool, val any) {
		if _, ok := f.raw[key]; ok && !changed {
			return
		}
		if empty {
			delete(out, key)
			return
		}
		out[key] = val
	}
	put("score", !sameValue(f.Score, f.base.score), f.Score == nil, f.Score)
	put("missedTopics", !slices.Equal(f.MissedTopics, f.base.missed),
		len(f.MissedTopics) == 0, f.MissedTopics)
	put("notes", f.Notes != f.base.notes, f.Notes == "", f.Notes)
	return json.Marshal(out)
}

// sameValue reports whether two optional values are both nil or
// point to equal values.
func sameValue[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decodeMessage(v gjson.Result) Message {
	m := Message{Raw: json.RawMessage(v.Raw)}
	if v.IsObject() {
		m.Role = RoleType(v.Get("role").Str)
		m.Content = textContent(v.Get("content"))
	}
	m.ts, m.hasTS = ExtractTimestamp(m.Raw)
	m.resolved = true
	return m
}

// textContent reads message content that is either a string or
// an array of text blocks.
func textContent(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	if !content.IsArray() {
		return ""
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		switch {
		case block.Type == gjson.String:
			parts = append(parts, block.Str)
		case block.Get("text").Type == gjson.String:
			parts = append(parts, block.Get("text").Str)
		}
		return true
	})
	return strings.Join(parts, "\n")
}

// scalarString returns strings as-is and numbers in their JSON
// form; other types yield "".
func scalarString(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

// NewMessage builds a message with the canonical field names.
// A zero ts omits the timestamp.
func NewMessage(role RoleType, content string, ts time.Time) Message {
	wire := struct {
		Role      RoleType `json:"role"`
		Content   string   `json:"content"`
		Timestamp string   `json:"timestamp,omitempty"`
	}{Role: role, Content: content}
	if !ts.IsZero() {
		wire.Timestamp = FormatInstant(ts)
	}
	raw, _ := json.Marshal(wire)
	m := Message{Role: role, Content: content, Raw: raw}
	m.ts, m.hasTS = ExtractTimestamp(raw)
	m.resolved = true
	return m
}

// UnmarshalJSON decodes any JSON value into a Message, keeping
// the raw bytes.
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid message JSON", ErrMalformed)
	}
	*m = decodeMessage(gjson.ParseBytes(data))
	return nil
}

// MarshalJSON writes the raw producer bytes back unchanged.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(struct {
		Role    RoleType `json:"role"`
		Content string   `json:"content"`
	}{m.Role, m.Content})
}

// UnmarshalJSON decodes a session object.
func (s *Session) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeSession(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// MarshalJSON writes the session with its preserved extra
// fields. A field left as decoded is written back exactly as it
// was stored; optional fields that were absent stay absent.
func (s Session) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+len(sessionFields))
	for k, v := range s.Extra {
		out[k] = v
	}
	put := func(key string, changed, empty bool, val any) {
		if raw, ok := s.orig[key]; ok && !changed {
			out[key] = raw
			return
		}
		if !empty {
			out[key] = val
		}
	}
	b := s.base
	put("id", s.ID != b.id, false, s.ID)
	put("timestamp", s.Timestamp != b.timestamp, s.Timestamp == "", s.Timestamp)
	put("userName", s.UserName != b.userName, s.UserName == "", s.UserName)
	put("company", s.Company != b.company, s.Company == "", s.Company)
	put("role", s.Role != b.role, s.Role == "", s.Role)
	put("category", s.Category != b.category, s.Category == "", s.Category)
	put("questionCount", !sameValue(s.QuestionCount, b.questionCount),
		s.QuestionCount == nil, s.QuestionCount)
	put("random", !sameValue(s.Random, b.random), s.Random == nil, s.Random)

	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	// A new session always carries a messages array; a stored
	// record without one keeps its shape.
	put("messages", len(msgs) != b.messages,
		len(msgs) == 0 && s.orig != nil, msgs)
	put("feedback", s.Feedback != nil, s.Feedback == nil, s.Feedback)
	return json.Marshal(out)
}
