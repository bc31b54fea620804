package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/credscope/credscope/internal/archive"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
)

type scoreRequest struct {
	Target string `json:"target"`
}

type simulateRequest struct {
	Target      string                         `json:"target"`
	Overrides   map[scoring.SignalName]float64 `json:"overrides"`
	Provisional signals.Provisional            `json:"provisional"`
}

type storedScoreResponse struct {
	ID         string                                      `json:"id"`
	Target     string                                      `json:"target"`
	Score      float64                                     `json:"score"`
	Partial    bool                                        `json:"partial"`
	Stale      bool                                        `json:"stale"`
	Errors     []scoring.SignalName                        `json:"errors"`
	Signals    map[scoring.SignalName]scoring.SignalResult `json:"signals,omitempty"`
	ComputedAt string                                      `json:"computed_at"`
}

func (h *Handler) storedToResponse(sc *store.StoredScore, withSignals bool) storedScoreResponse {
	errs := sc.Errors
	if errs == nil {
		errs = []scoring.SignalName{}
	}
	resp := storedScoreResponse{
		ID:         sc.ID,
		Target:     sc.Target,
		Score:      sc.Score,
		Partial:    sc.Partial,
		Stale:      h.scores.IsStale(sc),
		Errors:     errs,
		ComputedAt: sc.ComputedAt.UTC().Format(time.RFC3339),
	}
	if withSignals {
		resp.Signals = sc.Signals
	}
	return resp
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := scoring.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.scorer.Score(r.Context(), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := scoring.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := req.Provisional
	if p.StakedEth < 0 || p.Backers < 0 || p.Reviews.Positive < 0 || p.Reviews.Negative < 0 || p.Reviews.Neutral < 0 {
		writeError(w, http.StatusBadRequest, "provisional activity must not be negative")
		return
	}

	e, err := h.scorer.Simulate(r.Context(), target, req.Overrides, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleTree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.scorer.Tree())
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	target, err := scoring.ParseTarget(r.PathValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := h.scores.LatestScore(r.Context(), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "no score recorded for "+target.String())
		return
	}
	writeJSON(w, http.StatusOK, h.storedToResponse(sc, true))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	target, err := scoring.ParseTarget(r.PathValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	rows, err := h.scores.History(r.Context(), target, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result := make([]storedScoreResponse, 0, len(rows))
	for i := range rows {
		result = append(result, h.storedToResponse(&rows[i], false))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusNotFound, "result archive is not configured")
		return
	}
	target, err := scoring.ParseTarget(r.PathValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.scores.CanonicalKey(r.Context(), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	e, err := h.results.Load(r.Context(), key, r.PathValue("id"))
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "archived result not found")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
