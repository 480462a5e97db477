// Package server exposes the engine's read and command APIs over HTTP/JSON.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
	"github.com/harshilgor/testtaker-sub001/internal/logging"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// warmTimeout bounds how long a request waits for a user's first load.
const warmTimeout = 3 * time.Second

// maxBody caps request bodies.
const maxBody = 1 << 20

// Server is the testtaker HTTP API server.
type Server struct {
	engine     *reconcile.Engine
	store      *store.Store
	normalizer *attempt.Normalizer
	log        *logging.Logger
	router     chi.Router
	version    string
	started    time.Time
}

// New creates a Server. st is used only for health checks.
func New(engine *reconcile.Engine, st *store.Store, normalizer *attempt.Normalizer, log *logging.Logger, version string) *Server {
	s := &Server{
		engine:     engine,
		store:      st,
		normalizer: normalizer,
		log:        logging.OrNop(log),
		version:    version,
		started:    time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(s.warm)
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/mastery", s.handleMastery)
			r.Get("/streak", s.handleStreak)
			r.Get("/quests", s.handleQuests)
			r.Post("/attempts", s.handleRecordAttempt)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/quests/regenerate", s.handleRegenerate)
			r.Post("/quests/{questID}/claim", s.handleClaim)
		})
	})

	s.router = r
}

// warm makes a user's first request wait briefly for the initial load so it
// doesn't see an empty state. A slow store only delays, never fails, reads.
func (s *Server) warm(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), warmTimeout)
		defer cancel()
		if err := s.engine.Warm(ctx, chi.URLParam(r, "userID")); err != nil && ctx.Err() == nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.store != nil && s.store.DB().PingContext(r.Context()) == nil
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}
