package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/wordbank"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// parseFilter reads the filter dimensions and display timezone
// from the query string. It writes a 400 and returns false when
// any of them is invalid.
func parseFilter(
	w http.ResponseWriter, r *http.Request,
) (analytics.Filter, *time.Location, bool) {
	q := r.URL.Query()
	tz := q.Get("timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"invalid timezone: "+tz)
		return analytics.Filter{}, nil, false
	}

	f := analytics.Filter{
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
		Company:   q.Get("company"),
		Category:  q.Get("category"),
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return analytics.Filter{}, nil, false
	}
	return f, loc, true
}

// parseMatcher resolves the optional matcher query parameter,
// falling back to the configured matcher.
func (s *Server) parseMatcher(
	w http.ResponseWriter, r *http.Request,
) (wordbank.Matcher, bool) {
	name := r.URL.Query().Get("matcher")
	if name == "" {
		return s.matcher(), true
	}
	m, err := wordbank.MatcherByName(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return m, true
}

// parseIntParam parses a non-negative integer query parameter.
// A missing parameter yields def.
func parseIntParam(
	w http.ResponseWriter, r *http.Request, name string, def int,
) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest,
			name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSessionLimit
	}
	return min(limit, maxSessionLimit)
}
