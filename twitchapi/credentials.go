package twitchapi

import "sync"

// BroadcasterIdentity is the app registration and broadcaster clips are created for.
// It is loaded once at startup and never mutated.
type BroadcasterIdentity struct {
	ClientID      string
	ClientSecret  string
	BroadcasterID string
}

// CredentialPair is a user access token together with the refresh token that renews it.
type CredentialPair struct {
	AccessToken  string
	RefreshToken string
}

// CredentialState holds the single live CredentialPair for the process.
// It is shared by every request handler; refreshed pairs are kept in memory only.
type CredentialState struct {
	mu   sync.RWMutex
	pair CredentialPair
}

// NewCredentialState seeds the state with the pair loaded from configuration.
func NewCredentialState(accessToken, refreshToken string) *CredentialState {
	return &CredentialState{pair: CredentialPair{AccessToken: accessToken, RefreshToken: refreshToken}}
}

// Current returns a copy of the live pair.
func (s *CredentialState) Current() CredentialPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// Replace overwrites the access token and, when newRefresh is non-empty, the refresh token.
// Twitch may or may not rotate the refresh token on exchange.
func (s *CredentialState) Replace(newAccess, newRefresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair.AccessToken = newAccess
	if newRefresh != "" {
		s.pair.RefreshToken = newRefresh
	}
}
