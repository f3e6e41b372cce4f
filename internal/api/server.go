// Package api exposes TLE lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cywf/tle-fetcher/internal/auth"
	"github.com/cywf/tle-fetcher/internal/fetch"
	"github.com/cywf/tle-fetcher/internal/health"
	"github.com/cywf/tle-fetcher/internal/httputil"
	"github.com/cywf/tle-fetcher/internal/metrics"
	"github.com/cywf/tle-fetcher/internal/propagation"
	"github.com/cywf/tle-fetcher/internal/tle"
)

// Fetcher resolves TLE lookups. Satisfied by *fetch.Service.
type Fetcher interface {
	FetchOne(ctx context.Context, id string, opts fetch.Options) (fetch.Result, error)
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	fetcher    Fetcher
	opts       fetch.Options
}

// NewServer creates a configured HTTP server. ready is the readiness
// probe dependency check and may be nil.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, fetcher Fetcher, opts fetch.Options, ready func(context.Context) error) *Server {
	s := &Server{
		logger:  logger,
		fetcher: fetcher,
		opts:    opts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /readyz", health.Readyz(ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/tle/{id}", s.handleTLE)
	mux.HandleFunc("GET /api/v1/tle/{id}/epoch", s.handleEpoch)
	mux.HandleFunc("GET /api/v1/tle/{id}/position", s.handlePosition)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control
// (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type tleResponse struct {
	ObjectID  string   `json:"object_id"`
	Name      string   `json:"name,omitempty"`
	Line1     string   `json:"line1"`
	Line2     string   `json:"line2"`
	Source    string   `json:"source"`
	FetchedAt string   `json:"fetched_at"`
	Stale     bool     `json:"stale,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (s *Server) handleTLE(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tleResponse{
		ObjectID:  res.Record.ObjectID,
		Name:      res.Record.Name,
		Line1:     res.Record.Line1,
		Line2:     res.Record.Line2,
		Source:    res.Source,
		FetchedAt: res.FetchedAt.UTC().Format(time.RFC3339),
		Stale:     res.Stale,
		Warnings:  res.Warnings,
	})
}

func (s *Server) handleEpoch(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resolve(w, r)
	if !ok {
		return
	}
	epoch, err := tle.Epoch(res.Record.Line1)
	if err != nil {
		s.logger.Error("epoch decode failed", "id", res.Record.ObjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "epoch decode failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"object_id": res.Record.ObjectID,
		"epoch":     epoch.Format(time.RFC3339Nano),
	})
}

type positionResponse struct {
	ObjectID   string     `json:"object_id"`
	Time       string     `json:"time"`
	Position   [3]float64 `json:"position_km"`
	Velocity   [3]float64 `json:"velocity_km_s"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	AltitudeKm float64    `json:"altitude_km"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'at' timestamp, want RFC 3339")
			return
		}
		at = parsed.UTC()
	}

	res, ok := s.resolve(w, r)
	if !ok {
		return
	}

	prop, err := propagation.NewPropagator(res.Record.Line1, res.Record.Line2, res.Record.ObjectID)
	if err != nil {
		s.logger.Error("propagator init failed", "id", res.Record.ObjectID, "error", err)
		writeError(w, http.StatusInternalServerError, "propagation failed")
		return
	}
	sample, err := prop.At(at)
	if err != nil {
		s.logger.Error("propagation failed", "id", res.Record.ObjectID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, positionResponse{
		ObjectID:   res.Record.ObjectID,
		Time:       sample.Time.Format(time.RFC3339),
		Position:   sample.Position,
		Velocity:   sample.Velocity,
		Latitude:   sample.Latitude,
		Longitude:  sample.Longitude,
		AltitudeKm: sample.AltitudeKm,
	})
}

// resolve fetches the requested TLE and writes the error response on
// failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (fetch.Result, bool) {
	id := r.PathValue("id")
	res, err := s.fetcher.FetchOne(r.Context(), id, s.opts)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetch.ErrOffline) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("lookup failed", "id", id, "error", err)
		writeError(w, status, err.Error())
		return fetch.Result{}, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// probePath returns true for health/readiness probe paths that should
// not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, false),
			)
		})
	}
}
