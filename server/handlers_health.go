package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness checks.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness checks with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"credentials", func(context.Context) error {
			if h.deps.Credentials == nil || h.deps.Credentials.Current().AccessToken == "" {
				return errors.New("missing Twitch access token")
			}
			return nil
		}},
		{"database", func(ctx context.Context) error {
			if h.deps.History == nil {
				return nil
			}
			return h.deps.History.Ping(ctx)
		}},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
