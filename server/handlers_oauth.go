package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/clip-relay/telemetry"
	"github.com/onnwee/clip-relay/twitchapi"
)

// HandleTwitchOAuthStart initiates the Twitch OAuth flow by redirecting to Twitch.
func (h *Handlers) HandleTwitchOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.TwitchClientID == "" || h.cfg.TwitchRedirectURI == "" {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", http.StatusInternalServerError)
		return
	}
	st := hex.EncodeToString(b)
	if !h.addOAuthState(st, time.Now().Add(oauthStateTTL)) {
		http.Error(w, "too many pending authorizations", http.StatusServiceUnavailable)
		return
	}
	authURL, err := twitchapi.BuildAuthorizeURL(h.cfg.TwitchClientID, h.cfg.TwitchRedirectURI, h.cfg.TwitchScopes, st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleTwitchOAuthCallback exchanges the authorization code and installs the
// new credential pair for the rest of the process lifetime.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "oauth"))
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", http.StatusBadRequest)
		return
	}
	if !h.consumeOAuthState(st) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	timeout := h.cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = twitchapi.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	tok, err := twitchapi.ExchangeAuthCode(ctx, h.deps.OAuthClient, h.cfg.TwitchClientID, h.cfg.TwitchClientSecret, code, h.cfg.TwitchRedirectURI)
	if err != nil {
		log.Warn("twitch code exchange failed", slog.Any("err", err))
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}
	if tok.AccessToken == "" {
		http.Error(w, "code exchange returned no access token", http.StatusBadGateway)
		return
	}
	h.deps.Credentials.Replace(tok.AccessToken, tok.RefreshToken)
	log.Info("twitch credentials replaced via re-authorization")

	expiresIn := 0
	if !tok.Expiry.IsZero() {
		expiresIn = max(int(time.Until(tok.Expiry).Seconds()), 0)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"expires_in":            expiresIn,
		"refresh_token_present": tok.RefreshToken != "",
	})
}
