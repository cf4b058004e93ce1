// Package api exposes the read-only HTTP interface over stored snapshots.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/regwatch/ecfr-ingest/internal/snapshot"
)

// Server wires HTTP handlers to the snapshot store.
type Server struct {
	router chi.Router
	store  snapshot.Store
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store snapshot.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/agencies", s.listAgencies)
		r.Route("/agencies/{slug}", func(r chi.Router) {
			r.Get("/", s.getAgency)
			r.Get("/history", s.getHistory)
			r.Get("/changes", s.getChanges)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listAgencies returns every snapshot of the most recent run.
func (s *Server) listAgencies(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.LatestRun(r.Context())
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		writeJSON(w, http.StatusOK, []snapshot.Snapshot{})
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// getAgency returns the latest snapshot for one agency.
func (s *Server) getAgency(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	snap, err := s.store.LatestSnapshot(r.Context(), slug)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "agency not found")
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getHistory returns the agency's full snapshot timeline, oldest first.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	history, err := s.store.History(r.Context(), slug)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "agency not found")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// getChanges diffs the agency's two most recent snapshots.
func (s *Server) getChanges(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	prev, latest, err := s.store.TwoMostRecent(r.Context(), slug)
	if errors.Is(err, snapshot.ErrInsufficientHistory) {
		writeError(w, http.StatusNotFound, "not enough history to diff")
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Diff(prev, latest))
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.logger.Error("store query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
