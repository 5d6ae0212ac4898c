// Package server exposes the query, snapshot, and export surfaces over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketintel/internal/core"
	"marketintel/internal/export"
	"marketintel/internal/logger"
	"marketintel/internal/metrics"
	"marketintel/internal/retrieval"
	"marketintel/internal/snapshot"
)

// SnapshotReader fetches the latest unexpired snapshot.
type SnapshotReader interface {
	Latest(ctx context.Context, card core.Card, industry string) (core.MarketSnapshot, error)
}

// Config holds the server's listen and timeout settings.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// Server serves the HTTP API.
type Server struct {
	httpServer *http.Server
	retrieval  *retrieval.Service
	snapshots  SnapshotReader
	cache      *snapshot.Cache
	exports    *export.Service
}

// New builds the server and its routes. cache may be nil.
func New(cfg Config, retrievalSvc *retrieval.Service, snapshots SnapshotReader, cache *snapshot.Cache, exports *export.Service) *Server {
	s := &Server{
		retrieval: retrievalSvc,
		snapshots: snapshots,
		cache:     cache,
		exports:   exports,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/snapshots/{card}", s.handleSnapshot)
		r.Post("/exports", s.handleCreateExport)
		r.Get("/exports/{id}", s.handleExportStatus)
		r.Get("/health", s.handleHealth)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start listens until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	log := logger.With("server")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

type queryRequest struct {
	Query     string  `json:"query"`
	Industry  string  `json:"industry"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	resp, err := s.retrieval.Answer(r.Context(), retrieval.Request{
		Query:     req.Query,
		Industry:  req.Industry,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	metrics.Queries.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	card := core.Card(chi.URLParam(r, "card"))
	industry := r.URL.Query().Get("industry")
	if industry == "" {
		writeError(w, http.StatusBadRequest, "industry query parameter is required")
		return
	}

	if s.cache != nil {
		if snap, ok := s.cache.Get(r.Context(), card, industry); ok {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			writeJSON(w, http.StatusOK, snap)
			return
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	snap, err := s.snapshots.Latest(r.Context(), card, industry)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoFreshSnapshot) {
			writeError(w, http.StatusNotFound, "no fresh snapshot for this card and industry")
			return
		}
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), snap); err != nil {
			logger.With("server").Warn().Err(err).Msg("snapshot cache backfill failed")
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

type exportRequest struct {
	Card     string `json:"card"`
	Industry string `json:"industry"`
	Format   string `json:"format"`
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Industry == "" || req.Card == "" {
		writeError(w, http.StatusBadRequest, "card and industry are required")
		return
	}

	job, err := s.exports.Submit(r.Context(), core.Card(req.Card), req.Industry, req.Format)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "format must be json or csv")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start export")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.exports.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, export.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "export job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read export status")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.retrieval.HealthCheck(r.Context())
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.With("server").Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.With("http").Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
