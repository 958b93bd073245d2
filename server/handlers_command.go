package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/clip-relay/command"
	"github.com/onnwee/clip-relay/telemetry"
)

const maxCommandBody = 64 << 10

// HandleTwitchCommand accepts chat-bot commands as a JSON POST body or as GET
// query parameters and answers with the plain-text caller message.
func (h *Handlers) HandleTwitchCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	switch r.Method {
	case http.MethodPost:
		dec := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody))
		if err := dec.Decode(&req); err != nil {
			telemetry.LoggerWithCorr(r.Context()).Debug("undecodable command body", slog.Any("err", err), slog.String("component", "http"))
			writeMissingFields(w)
			return
		}
	case http.MethodGet:
		q := r.URL.Query()
		req = command.Request{Command: q.Get("command"), User: q.Get("user"), Message: q.Get("message")}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reply, err := h.deps.Dispatcher.Dispatch(r.Context(), req)
	if errors.Is(err, command.ErrInvalidRequest) {
		writeMissingFields(w)
		return
	}
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("dispatch failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reply))
}

func writeMissingFields(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
}
