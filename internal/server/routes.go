package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
)

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMastery(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"stale":   snap.Stale,
		"skills":  snap.Mastery,
	})
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.GetStreak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleQuests(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"quests": snap.Quests,
		"points": snap.Points,
	})
}

func (s *Server) handleRecordAttempt(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, fmt.Errorf("read body: %w", err))
		return
	}
	raw, err := attempt.DecodeJSON(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ev, err := s.normalizer.Normalize(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.RecordOptimisticAttempt(r.Context(), userID, ev); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"event": ev})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	questID := chi.URLParam(r, "questID")

	q, err := s.engine.ClaimQuest(r.Context(), userID, questID)
	if errors.Is(err, reconcile.ErrClaimUnconfirmed) {
		s.log.Warn("claim not yet confirmed", "user", userID, "quest", questID, "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     err.Error(),
			"retryable": true,
			"quest":     q,
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"quest": q})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.engine.Refresh(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleSnapshot(w, r)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	qs, err := s.engine.RegenerateQuests(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"quests": qs})
}
