package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	// ClipsPath and TokenPath are the Twitch paths the mock server answers.
	ClipsPath = "/helix/clips"
	TokenPath = "/oauth2/token"
)

// MockTwitchServer creates a test server that mocks the Twitch Helix and OAuth endpoints.
// It records every call so tests can assert exact call counts and ordering.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu    sync.Mutex
	calls []string
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		m.mu.Lock()
		m.calls = append(m.calls, key)
		handler, ok := m.Handlers[key]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle installs a handler for path.
func (m *MockTwitchServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = h
}

// Calls returns how many requests hit path.
func (m *MockTwitchServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == path {
			n++
		}
	}
	return n
}

// CallOrder returns the request paths in arrival order.
func (m *MockTwitchServer) CallOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Client returns an http.Client that sends every request to the mock server,
// regardless of the Twitch host in the request URL.
func (m *MockTwitchServer) Client() *http.Client {
	return &http.Client{Transport: &RewriteTransport{Host: m.URL}}
}

// ClipResponse is one scripted answer of the clips endpoint.
type ClipResponse struct {
	Status int
	ClipID string
	Body   string // raw body override
}

// MockClipResponses answers successive clip requests with resps in order; the last repeats.
// A 202 without Body is rendered as {"data":[{"id":ClipID,...}]}.
func (m *MockTwitchServer) MockClipResponses(resps ...ClipResponse) {
	var mu sync.Mutex
	n := 0
	m.Handle(ClipsPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := n
		if i >= len(resps) {
			i = len(resps) - 1
		}
		n++
		mu.Unlock()
		writeClipResponse(w, resps[i])
	})
}

// MockClipsByToken answers the clips endpoint based on the bearer token presented.
// Unknown tokens get 401.
func (m *MockTwitchServer) MockClipsByToken(byToken map[string]ClipResponse) {
	m.Handle(ClipsPath, func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		resp, ok := byToken[tok]
		if !ok {
			resp = ClipResponse{Status: http.StatusUnauthorized}
		}
		writeClipResponse(w, resp)
	})
}

func writeClipResponse(w http.ResponseWriter, resp ClipResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	switch {
	case resp.Body != "":
		_, _ = w.Write([]byte(resp.Body))
	case resp.Status == http.StatusAccepted:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"data": []map[string]string{
				{"id": resp.ClipID, "edit_url": "https://clips.twitch.tv/" + resp.ClipID + "/edit"},
			},
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"error":   http.StatusText(resp.Status),
			"status":  resp.Status,
			"message": "mock",
		})
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint that always succeeds.
// An empty refreshToken omits the field, as Twitch does when it does not rotate.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handle(TokenPath, func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
			"scope":        []string{"clips:edit"},
		}
		if refreshToken != "" {
			response["refresh_token"] = refreshToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}

// MockOAuthTokenError makes the token endpoint fail with status and body.
func (m *MockTwitchServer) MockOAuthTokenError(status int, body string) {
	m.Handle(TokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// RewriteTransport redirects requests to Host, keeping path and query.
type RewriteTransport struct {
	Transport http.RoundTripper
	Host      string
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.Host, "http://")
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
