// Package server exposes the block-volume pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xtxerr/blockvol/internal/cache"
	blkerrors "github.com/xtxerr/blockvol/internal/errors"
	"github.com/xtxerr/blockvol/internal/logging"
	"github.com/xtxerr/blockvol/internal/series"
	"github.com/xtxerr/blockvol/internal/types"
)

// RowReader reads raw cache rows; served by the /blocks endpoint, which
// deliberately has no upstream fallback. Its read counters are reported
// by /statusz.
type RowReader interface {
	ReadRows(ctx context.Context, rng types.Range) ([]types.Row, error)
	Stats() cache.Stats
}

// Config configures the HTTP server.
type Config struct {
	Listen string
	Series *series.Service
	Rows   RowReader
}

// Server is the HTTP front of the service.
type Server struct {
	cfg  Config
	http *http.Server
	log  *slog.Logger
}

// errorBody is the JSON shape of a failed response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: logging.Component("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /blocks/encoded", s.handleEncoded)
	mux.HandleFunc("GET /blocks/stats", s.handleStats)
	mux.HandleFunc("GET /blocks", s.handleRaw)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /statusz", s.handleStatus)

	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("listening", "addr", s.cfg.Listen)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleEncoded serves the delta-encoded series for a range. Missing or
// unparseable bounds are treated as absent, never as a client error; only a
// failure of both the cache and the upstream produces a 500.
func (s *Server) handleEncoded(w http.ResponseWriter, r *http.Request) {
	rng := types.ParseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))

	env, err := s.cfg.Series.Encoded(r.Context(), rng)
	if err != nil {
		s.log.Error("encoded request failed", "range", rng.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "failed to fetch block volumes",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, env)
}

// handleStats serves the volume percentile summary for a range.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rng := types.ParseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))

	summary, err := s.cfg.Series.Summarize(r.Context(), rng)
	if err != nil {
		s.log.Error("stats request failed", "range", rng.String(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "failed to summarize block volumes",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleRaw serves raw cache rows. Unlike /blocks/encoded this endpoint
// requires both bounds to be valid integers and returns 400 otherwise, and
// a cache failure is a real failure here since there is no fallback.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	rng := types.ParseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if !rng.Bounded {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "start and end must be valid integers",
		})
		return
	}

	rows, err := s.cfg.Rows.ReadRows(r.Context(), rng)
	if err != nil {
		s.log.Error("raw request failed", "range", rng.String(), "error", err)
		status := http.StatusInternalServerError
		if blkerrors.Is(err, blkerrors.ErrCacheUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorBody{
			Error:   "failed to read blocks",
			Details: err.Error(),
		})
		return
	}
	if rows == nil {
		rows = []types.Row{}
	}

	writeJSON(w, http.StatusOK, rows)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusBody is the /statusz payload.
type statusBody struct {
	Series series.Stats `json:"series"`
	Cache  cache.Stats  `json:"cache"`
}

// handleStatus reports path and cache read counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{
		Series: s.cfg.Series.Stats(),
		Cache:  s.cfg.Rows.Stats(),
	})
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
