package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/metrics"
	"github.com/mockify/interviewstats/internal/transcript"
)

// maxSessionBody caps a session upload.
const maxSessionBody = 10 << 20

type sessionListResponse struct {
	Sessions []analytics.SessionSummary `json:"sessions"`
	Total    int                        `json:"total"`
	Limit    int                        `json:"limit"`
	Offset   int                        `json:"offset"`
}

func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	f, _, ok := parseFilter(w, r)
	if !ok {
		return
	}
	limit, ok := parseIntParam(w, r, "limit", defaultSessionLimit)
	if !ok {
		return
	}
	offset, ok := parseIntParam(w, r, "offset", 0)
	if !ok {
		return
	}
	limit = clampLimit(limit)

	sessions, err := s.repo.LoadSessions(r.Context())
	if err != nil {
		writeStoreError(w, "list sessions", err)
		return
	}
	filtered := analytics.Apply(sessions, f)
	page := filtered[min(offset, len(filtered)):]

	writeJSON(w, http.StatusOK, sessionListResponse{
		Sessions: analytics.RecentSessions(page, limit),
		Total:    len(filtered),
		Limit:    limit,
		Offset:   offset,
	})
}

func (s *Server) handleGetSession(
	w http.ResponseWriter, r *http.Request,
) {
	sess, err := s.repo.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleCreateSessions accepts one session object or an array
// of them and appends them to the collection.
func (s *Server) handleCreateSessions(
	w http.ResponseWriter, r *http.Request,
) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSessionBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				"request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	batch, err := transcript.DecodeBatch(body)
	if err != nil {
		writeStoreError(w, "create sessions", err)
		return
	}
	if len(batch) == 0 {
		writeError(w, http.StatusBadRequest, "no sessions in request")
		return
	}

	ids, err := s.repo.AppendSessions(r.Context(), batch...)
	if err != nil {
		writeStoreError(w, "create sessions", err)
		return
	}
	metrics.RecordIngested("api", len(ids))
	writeJSON(w, http.StatusCreated, map[string][]string{"ids": ids})
}

func (s *Server) handleDeleteSession(
	w http.ResponseWriter, r *http.Request,
) {
	if err := s.repo.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feedbackRequest struct {
	Score *float64 `json:"score"`
}

func (s *Server) handleUpdateFeedback(
	w http.ResponseWriter, r *http.Request,
) {
	var req feedbackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}
	sess, err := s.repo.UpdateFeedbackScore(
		r.Context(), r.PathValue("id"), *req.Score,
	)
	if err != nil {
		writeStoreError(w, "update feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
