package server

import (
	"net/http"
	"time"

	"github.com/mockify/interviewstats/internal/dashboard"
)

func (s *Server) handleDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	f, loc, ok := parseFilter(w, r)
	if !ok {
		return
	}
	m, ok := s.parseMatcher(w, r)
	if !ok {
		return
	}
	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "dashboard", err)
		return
	}

	in := dashboard.Input{
		Sessions:     sessions,
		Filter:       f,
		HalfLifeDays: s.halfLifeDays(),
		Matcher:      m,
		Now:          s.now(),
		Location:     loc,
	}
	if snap, ok := s.cache.Get(); ok {
		in.Bank = snap.Bank
	}
	writeJSON(w, http.StatusOK, dashboard.Compute(in))
}

type statsResponse struct {
	Sessions        int    `json:"sessions"`
	ScoredSessions  int    `json:"scored_sessions"`
	WordBankTokens  int    `json:"word_bank_tokens"`
	WordBankBuiltAt string `json:"word_bank_built_at,omitempty"`
	WordBankStale   bool   `json:"word_bank_stale"`
}

func (s *Server) handleGetStats(
	w http.ResponseWriter, r *http.Request,
) {
	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "stats", err)
		return
	}
	resp := statsResponse{Sessions: len(sessions)}
	for _, sess := range sessions {
		if _, ok := sess.Score(); ok {
			resp.ScoredSessions++
		}
	}
	snap, built := s.cache.Get()
	resp.WordBankStale = !built || snap.Stale(len(sessions))
	if built {
		resp.WordBankTokens = len(snap.Bank)
		if !snap.Provenance.BuiltAt.IsZero() {
			resp.WordBankBuiltAt = snap.Provenance.BuiltAt.
				Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
