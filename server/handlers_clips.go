package server

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/clip-relay/telemetry"
)

// HandleClipsList returns the most recent clip workflow results.
func (h *Handlers) HandleClipsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.History == nil {
		http.Error(w, "clip history not configured (set DB_DSN)", http.StatusNotFound)
		return
	}
	clips, err := h.deps.History.ListRecentClips(r.Context(), parseIntQuery(r, "limit", 50))
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list clips failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, clips)
}
