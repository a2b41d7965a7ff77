package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// All disables a filter dimension, like leaving it empty.
const All = "all"

const dateLayout = "2006-01-02"

// ErrInvalidFilter is returned by Filter.Validate.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter narrows a session collection. Zero-valued or All fields
// are ignored; set fields combine with AND.
type Filter struct {
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive of the whole day
	Company   string
	Category  string
}

func active(v string) bool {
	return v != "" && v != All
}

// IsZero reports whether no dimension is active.
func (f Filter) IsZero() bool {
	return !active(f.StartDate) && !active(f.EndDate) &&
		!active(f.Company) && !active(f.Category)
}

// Validate checks date formats and ordering. Apply itself never
// fails; callers at the request boundary use this to reject bad
// input early.
func (f Filter) Validate() error {
	var start, end time.Time
	var err error
	if active(f.StartDate) {
		if start, err = time.Parse(dateLayout, f.StartDate); err != nil {
			return fmt.Errorf(
				"%w: start date %q: use YYYY-MM-DD",
				ErrInvalidFilter, f.StartDate,
			)
		}
	}
	if active(f.EndDate) {
		if end, err = time.Parse(dateLayout, f.EndDate); err != nil {
			return fmt.Errorf(
				"%w: end date %q: use YYYY-MM-DD",
				ErrInvalidFilter, f.EndDate,
			)
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf(
			"%w: start date must not be after end date",
			ErrInvalidFilter,
		)
	}
	return nil
}

// dateBound holds a parsed date bound. A bound that failed to
// parse rejects every session.
type dateBound struct {
	active bool
	valid  bool
	t      time.Time
}

func startBound(s string) dateBound {
	if !active(s) {
		return dateBound{}
	}
	t, err := time.Parse(dateLayout, s)
	return dateBound{active: true, valid: err == nil, t: t}
}

// endBound covers the whole end day: end + 24h - 1ms.
func endBound(s string) dateBound {
	b := startBound(s)
	if b.valid {
		b.t = b.t.Add(24*time.Hour - time.Millisecond)
	}
	return b
}

// Apply returns the sessions matching f, in input order. The
// result never shares a backing array with sessions.
func Apply(
	sessions []transcript.Session, f Filter,
) []transcript.Session {
	start := startBound(f.StartDate)
	end := endBound(f.EndDate)

	out := make([]transcript.Session, 0, len(sessions))
	for _, s := range sessions {
		if active(f.Company) && s.Company != f.Company {
			continue
		}
		if active(f.Category) && s.CategoryOrMixed() != f.Category {
			continue
		}
		if start.active || end.active {
			ts, ok := s.Time()
			if !ok {
				continue
			}
			if start.active && (!start.valid || ts.Before(start.t)) {
				continue
			}
			if end.active && (!end.valid || ts.After(end.t)) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Companies returns the distinct non-empty companies in
// first-seen order.
func Companies(sessions []transcript.Session) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range sessions {
		if s.Company == "" || seen[s.Company] {
			continue
		}
		seen[s.Company] = true
		out = append(out, s.Company)
	}
	return out
}

// Categories returns the distinct categories, with sessions
// lacking one reported as transcript.CategoryMixed.
func Categories(sessions []transcript.Session) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range sessions {
		c := s.CategoryOrMixed()
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
