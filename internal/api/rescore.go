package api

import (
	"errors"
	"net/http"

	"github.com/credscope/credscope/internal/rescore"
)

type rescoreResponse struct {
	rescore.Result
	ElapsedMS int64 `json:"elapsed_ms"`
}

// handleRescore runs one pass over stale scores and reports what it did.
// A pass already in flight yields 409.
func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	if h.rescorer == nil {
		writeError(w, http.StatusNotFound, "rescore is not enabled")
		return
	}

	res, err := h.rescorer.Run(r.Context())
	if errors.Is(err, rescore.ErrRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rescoreResponse{Result: res, ElapsedMS: res.Elapsed.Milliseconds()})
}
