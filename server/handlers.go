// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/onnwee/clip-relay/command"
	"github.com/onnwee/clip-relay/config"
	"github.com/onnwee/clip-relay/db"
	"github.com/onnwee/clip-relay/twitchapi"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
	oauthStateTTL  = 10 * time.Minute
)

// Dispatcher handles one chat-bot command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (string, error)
}

// Credentials is the live Twitch credential pair.
type Credentials interface {
	Current() twitchapi.CredentialPair
	Replace(newAccess, newRefresh string)
}

// ClipHistory reads the stored clip results.
type ClipHistory interface {
	ListRecentClips(ctx context.Context, limit int) ([]db.ClipRecord, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call into. History and OAuthClient
// may be nil.
type Deps struct {
	Dispatcher  Dispatcher
	Credentials Credentials
	History     ClipHistory
	OAuthClient *http.Client
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg        *config.Config
	deps       Deps
	stateStore map[string]time.Time
	stateMu    sync.Mutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, deps Deps) *Handlers {
	return &Handlers{
		cfg:        cfg,
		deps:       deps,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState records state; it reports false when the store is full.
func (h *Handlers) addOAuthState(state string, expiry time.Time) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}
	if len(h.stateStore) >= maxOAuthStates {
		return false
	}
	h.stateStore[state] = expiry
	return true
}

// consumeOAuthState removes state and reports whether it was live.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	delete(h.stateStore, state)
	return ok && time.Now().Before(exp)
}
