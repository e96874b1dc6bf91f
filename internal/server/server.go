// Package server exposes the workspace artifacts over a read-only HTTP API.
// Every request reads the artifact files afresh; nothing is cached.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/confidence"
	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/metrics"
)

// Server serves one workspace.
type Server struct {
	cfg       *config.Config
	artifacts *artifact.Dir
	manifest  *dataset.Manifest
	loader    *dataset.Loader
	scorer    *confidence.Scorer
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// New creates a Server. m may be nil, in which case /metrics is not mounted.
func New(cfg *config.Config, manifest *dataset.Manifest, m *metrics.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		artifacts: artifact.NewDir(cfg.Workspace.ArtifactsPath()),
		manifest:  manifest,
		loader:    &dataset.Loader{NameColumns: cfg.Resolve.NameColumns},
		scorer:    confidence.New(cfg.Resolve),
		metrics:   m,
		log:       zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/entities", func(r chi.Router) {
		r.Get("/", s.handleEntities)
		r.Get("/{id}", s.handleEntity)
	})
	r.Route("/xrefs", func(r chi.Router) {
		r.Get("/", s.handleXrefs)
		r.Get("/{id}", s.handleXref)
		r.Get("/{id}/score", s.handleXrefScore)
	})
	r.Route("/chains", func(r chi.Router) {
		r.Get("/", s.handleChains)
		r.Get("/{id}", s.handleChain)
		r.Get("/{id}/validate", s.handleChainValidate)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("server: request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// page applies ?limit= and ?offset= to n items.
func page(r *http.Request, n int) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	offset = min(max(offset, 0), n)
	end := n
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		end = min(offset+limit, n)
	}
	return offset, end
}

type listResponse[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

func list[T any](r *http.Request, items []T) listResponse[T] {
	lo, hi := page(r, len(items))
	out := items[lo:hi]
	if out == nil {
		out = []T{}
	}
	return listResponse[T]{Total: len(items), Items: out}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeArtifactError maps artifact read failures to responses: a stage that
// has not run yet is a 404 carrying the hint, anything else a 500.
func (s *Server) writeArtifactError(w http.ResponseWriter, r *http.Request, err error) {
	if artifact.IsMissing(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error("server: read artifact",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
