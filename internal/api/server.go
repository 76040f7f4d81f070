// Package api exposes the read-only status HTTP interface for the pipeline.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/pipeline"
)

// Validator produces a gap report for a country.
type Validator interface {
	Validate(ctx context.Context, country string) (*pipeline.Report, error)
}

// Server wires HTTP handlers to the checkpoint store and the validator.
// Everything it serves is read-only; runs are started from the CLI, not
// over HTTP.
type Server struct {
	router    chi.Router
	ckpt      *checkpoint.Store
	validator Validator
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(ckpt *checkpoint.Store, validator Validator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{ckpt: ckpt, validator: validator, logger: logger}

	r := chi.NewRouter()
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/checkpoints", s.listCheckpoints)
		r.Get("/checkpoints/{key}", s.getCheckpoint)
		r.Get("/reports/{country}", s.getReport)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listCheckpoints(w http.ResponseWriter, _ *http.Request) {
	keys, err := s.ckpt.ListActive()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docs := make([]*checkpoint.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := s.ckpt.Load(key)
		if err != nil || doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"checkpoints": docs})
}

func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, _, _, ok := checkpoint.ParseKey(key); !ok {
		s.writeError(w, http.StatusBadRequest, "malformed checkpoint key")
		return
	}
	doc, err := s.ckpt.Load(key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "no active checkpoint "+key)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.validator.Validate(r.Context(), chi.URLParam(r, "country"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
