// Package api serves read-only query endpoints over the publish store.
//
// Every aggregated view is guarded by the latest batch's quality gate:
// no data yet is a 404, a failed gate is a 409, and only a passed gate
// serves data. The raw quality report itself is always readable so
// operators can diagnose a blocked batch.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/callsift/callsift/internal/logger"
	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/report"
	"github.com/callsift/callsift/internal/store"
)

// Server is the read-only HTTP query surface.
type Server struct {
	store      store.Store
	qualityCfg quality.Config
	router     chi.Router
	port       int
	// allowFailed serves aggregates even when the gate failed. Operator
	// override only; the report still shows passed=false.
	allowFailed bool
}

// Config holds server options.
type Config struct {
	Port        int
	Quality     quality.Config
	AllowFailed bool
}

// NewServer builds the router. Call Start to serve.
func NewServer(s store.Store, cfg Config) *Server {
	srv := &Server{
		store:       s,
		qualityCfg:  cfg.Quality,
		port:        cfg.Port,
		allowFailed: cfg.AllowFailed,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Get("/quality", srv.handleQuality)
		r.Get("/summary/themes", srv.gated(srv.handleThemes))
		r.Get("/summary/subthemes", srv.gated(srv.handleSubthemes))
		r.Get("/quotes", srv.gated(srv.handleQuotes))
	})
	r.Get("/report", srv.gated(srv.handleReport))

	srv.router = r
	return srv
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Log.WithField("addr", addr).Info("starting HTTP API")
	return http.ListenAndServe(addr, s.router)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Log.WithRequest(r).Debug("request")
		next.ServeHTTP(w, r)
	})
}

// gated wraps a handler with the publish gate: 404 when nothing has been
// published, 409 when the latest batch failed its gate.
func (s *Server) gated(next func(w http.ResponseWriter, r *http.Request, batchID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		br, err := s.store.LatestReport(r.Context())
		if err != nil {
			logger.Log.WithError(err).Error("loading latest report")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if br == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no published batch"})
			return
		}
		if !br.Report.Passed && !s.allowFailed {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "quality gate not passed",
				"batch_id": br.BatchID,
				"failures": br.Report.Failures(s.qualityCfg),
			})
			return
		}
		next(w, r, br.BatchID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "callsift"})
}

// handleQuality serves the latest quality report unconditionally: it is the
// diagnostic surface, not an aggregate.
func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	br, err := s.store.LatestReport(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("loading latest report")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if br == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no published batch"})
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request, batchID string) {
	themes, err := s.store.ThemeSummary(r.Context(), batchID)
	if err != nil {
		logger.Log.WithError(err).Error("theme summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "themes": themes})
}

func (s *Server) handleSubthemes(w http.ResponseWriter, r *http.Request, batchID string) {
	subthemes, err := s.store.SubthemeSummary(r.Context(), batchID)
	if err != nil {
		logger.Log.WithError(err).Error("subtheme summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "subthemes": subthemes})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request, batchID string) {
	f := store.MentionFilter{
		Theme:    r.URL.Query().Get("theme"),
		Subtheme: r.URL.Query().Get("subtheme"),
		Label:    r.URL.Query().Get("label"),
		DialogID: r.URL.Query().Get("dialog_id"),
		Limit:    50,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	mentions, err := s.store.ListMentions(r.Context(), batchID, f)
	if err != nil {
		logger.Log.WithError(err).Error("listing mentions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "mentions": mentions})
}

// handleReport renders the batch report as HTML.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, batchID string) {
	batch, err := s.store.LatestBatch(r.Context())
	if err != nil || batch == nil {
		logger.Log.WithError(err).Error("loading batch for report")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	themes, err := s.store.ThemeSummary(r.Context(), batchID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	subthemes, err := s.store.SubthemeSummary(r.Context(), batchID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	md, err := report.Markdown(batch, themes, subthemes, batch.Report.Failures(s.qualityCfg))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := goldmark.Convert([]byte(md), w); err != nil {
		logger.Log.WithError(err).Error("rendering report HTML")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
