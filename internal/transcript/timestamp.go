package transcript

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// TimestampFields lists the message fields probed for a
// timestamp, in priority order.
var TimestampFields = [...]string{
	"timestamp", "createdAt", "time", "ts", "date",
}

// calendarLayouts are tried in order by ParseInstant. Layouts
// without a zone are read as UTC.
var calendarLayouts = [...]string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006",
}

// minEpochDigits keeps short digit strings such as "2024" from
// being read as milliseconds after 1970.
const minEpochDigits = 10

// ExtractTimestamp probes a raw message for its timestamp. The
// first candidate field holding a truthy value decides the
// outcome: numbers are epoch milliseconds, strings are parsed as
// calendar instants. Anything else, including a value that fails
// to parse, yields false.
func ExtractTimestamp(raw []byte) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return time.Time{}, false
	}
	for _, field := range TimestampFields {
		v := doc.Get(field)
		if !truthy(v) {
			continue
		}
		switch v.Type {
		case gjson.Number:
			return epochMillis(v.Float()), true
		case gjson.String:
			return ParseInstant(v.Str)
		default:
			return time.Time{}, false
		}
	}
	return time.Time{}, false
}

// truthy reports whether v would be considered set by a
// loosely-typed producer: zero, empty string, false and null are
// treated as missing.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return v.Exists()
	}
}

func epochMillis(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// ParseInstant parses a calendar date/time string, or a string of
// epoch milliseconds. Returns false for anything unparseable.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) >= minEpochDigits && isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	// Date.toString appends a zone name in parentheses.
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatInstant renders t as RFC 3339 with millisecond precision
// in UTC, the form written for timestamps defaulted at ingestion.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
