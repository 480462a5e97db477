package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// writeJSON writes v as the response body. Headers are already sent when
// encoding fails, so the failure can only be logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", "status", status, "error", err)
	}
}

// statusFor maps engine errors to HTTP status codes and whether the client
// should retry.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, attempt.ErrMalformed):
		return http.StatusBadRequest, false
	case errors.Is(err, quest.ErrQuestNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, quest.ErrNotCompletable), errors.Is(err, quest.ErrQuestExpired):
		return http.StatusConflict, false
	case errors.Is(err, reconcile.ErrClaimUnconfirmed), errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, reconcile.ErrClosed):
		return http.StatusServiceUnavailable, false
	default:
		return http.StatusInternalServerError, false
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, retryable := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if retryable {
		body["retryable"] = true
	}
	s.writeJSON(w, status, body)
}
