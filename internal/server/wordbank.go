package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/wordbank"
)

type wordBankResponse struct {
	Bank       wordbank.Bank       `json:"bank"`
	Provenance wordbank.Provenance `json:"provenance"`
	Built      bool                `json:"built"`
	Stale      bool                `json:"stale"`
}

func (s *Server) snapshot() (wordbank.Snapshot, bool) {
	snap, ok := s.cache.Get()
	if snap.Bank == nil {
		snap.Bank = wordbank.Bank{}
	}
	return snap, ok
}

func (s *Server) handleGetWordBank(
	w http.ResponseWriter, r *http.Request,
) {
	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "get word bank", err)
		return
	}
	snap, built := s.snapshot()
	writeJSON(w, http.StatusOK, wordBankResponse{
		Bank:       snap.Bank,
		Provenance: snap.Provenance,
		Built:      built,
		Stale:      !built || snap.Stale(len(sessions)),
	})
}

// handleRebuildWordBank replaces the bank with one built over the
// filtered sessions.
func (s *Server) handleRebuildWordBank(
	w http.ResponseWriter, r *http.Request,
) {
	f, _, ok := parseFilter(w, r)
	if !ok {
		return
	}
	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "rebuild word bank", err)
		return
	}
	snap, err := s.repo.RebuildWordBank(
		r.Context(), s.cache, analytics.Apply(sessions, f), s.now(), "api",
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError,
			"word bank rebuilt but could not be saved")
		return
	}
	writeJSON(w, http.StatusOK, wordBankResponse{
		Bank:       snap.Bank,
		Provenance: snap.Provenance,
		Built:      true,
	})
}

func (s *Server) handleClearWordBank(
	w http.ResponseWriter, r *http.Request,
) {
	if err := s.repo.ClearWordBank(r.Context()); err != nil {
		writeStoreError(w, "clear word bank", err)
		return
	}
	s.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportWordBank(
	w http.ResponseWriter, r *http.Request,
) {
	exp, err := wordbank.NewExporter(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, _ := s.snapshot()

	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", wordbank.Filename(exp)),
	)
	if err := exp.Export(snap.Bank, w); err != nil {
		log.Printf("export word bank: %v", err)
	}
}

type keywordsResponse struct {
	Matcher  string                 `json:"matcher"`
	Keywords []wordbank.KeywordStat `json:"keywords"`
}

// handleKeywords cross-indexes the current bank against the
// filtered sessions.
func (s *Server) handleKeywords(
	w http.ResponseWriter, r *http.Request,
) {
	f, _, ok := parseFilter(w, r)
	if !ok {
		return
	}
	m, ok := s.parseMatcher(w, r)
	if !ok {
		return
	}
	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "keywords", err)
		return
	}
	resp := keywordsResponse{
		Matcher:  m.Name(),
		Keywords: []wordbank.KeywordStat{},
	}
	if snap, ok := s.cache.Get(); ok && len(snap.Bank) > 0 {
		resp.Keywords = wordbank.SortedStats(wordbank.CrossIndex(
			snap.Bank, analytics.Apply(sessions, f), m,
		))
	}
	writeJSON(w, http.StatusOK, resp)
}
