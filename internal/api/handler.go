// Package api implements the credscope REST API.
// It serves score, simulation and history endpoints backed by the store and
// the scoring pipeline.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/credscope/credscope/internal/rescore"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
	"github.com/credscope/credscope/pkg/surface"
)

// maxBodyBytes bounds request bodies after decompression.
const maxBodyBytes = 1 << 20

// Scorer computes live and what-if scores.
type Scorer interface {
	Score(ctx context.Context, target scoring.Target) (*surface.Explained, error)
	Simulate(ctx context.Context, target scoring.Target, overrides map[scoring.SignalName]float64, prov signals.Provisional) (*surface.Explained, error)
	Tree() scoring.Tree
}

// ScoreReader reads persisted scores.
type ScoreReader interface {
	LatestScore(ctx context.Context, t scoring.Target) (*store.StoredScore, error)
	History(ctx context.Context, t scoring.Target, limit int) ([]store.StoredScore, error)
	IsStale(row *store.StoredScore) bool
	CanonicalKey(ctx context.Context, t scoring.Target) (string, error)
}

// ResultLoader reads archived explained results.
type ResultLoader interface {
	Load(ctx context.Context, target, id string) (*surface.Explained, error)
}

// Rescorer runs one rescore pass.
type Rescorer interface {
	Run(ctx context.Context) (rescore.Result, error)
}

// Handler is the top-level API handler for the credscope service.
type Handler struct {
	scorer   Scorer
	scores   ScoreReader
	results  ResultLoader
	rescorer Rescorer
	health   func(context.Context) error
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithResults enables the archived result endpoint.
func WithResults(r ResultLoader) Option {
	return func(h *Handler) { h.results = r }
}

// WithRescorer enables the internal rescore endpoint.
func WithRescorer(r Rescorer) Option {
	return func(h *Handler) { h.rescorer = r }
}

// WithHealthCheck makes /healthz report 503 when check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a new API handler.
func NewHandler(scorer Scorer, scores ScoreReader, opts ...Option) *Handler {
	h := &Handler{
		scorer: scorer,
		scores: scores,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Compute endpoints
	mux.HandleFunc("POST /v1/score", h.handleScore)
	mux.HandleFunc("POST /v1/simulate", h.handleSimulate)

	// Read endpoints
	mux.HandleFunc("GET /v1/tree", h.handleTree)
	mux.HandleFunc("GET /v1/scores/{target}", h.handleLatest)
	mux.HandleFunc("GET /v1/scores/{target}/history", h.handleHistory)
	mux.HandleFunc("GET /v1/scores/{target}/results/{id}", h.handleResult)

	// Operations
	mux.HandleFunc("POST /internal/rescore", h.handleRescore)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads a JSON body, accepting gzip-compressed payloads.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		body = io.LimitReader(gz, maxBodyBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var cfgErr *scoring.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
