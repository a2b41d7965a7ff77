package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/store"
	"github.com/mockify/interviewstats/internal/transcript"
	"github.com/mockify/interviewstats/internal/wordbank"
)

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encoding response: %v", err)
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// handleContextError detects context.Canceled and
// context.DeadlineExceeded errors, returning true so the
// caller stops processing. It does NOT write an HTTP
// response. The withTimeout middleware handles that via
// http.TimeoutHandler (503); writing here would race with
// the middleware's buffered response.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidScore),
		errors.Is(err, analytics.ErrInvalidFilter),
		errors.Is(err, transcript.ErrMalformed),
		errors.Is(err, wordbank.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError writes err with the status its sentinel maps
// to. Internal errors are logged and reported generically.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	if handleContextError(w, err) {
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", op, err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
