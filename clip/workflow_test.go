package clip

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/onnwee/clip-relay/testutil"
	"github.com/onnwee/clip-relay/twitchapi"
)

var testIdentity = twitchapi.BroadcasterIdentity{
	ClientID:      "test-client-id",
	ClientSecret:  "test-secret",
	BroadcasterID: "141981764",
}

// newMockWorkflow wires the real Twitch clients to a mock server.
func newMockWorkflow(mock *testutil.MockTwitchServer, access, refresh string) (*Workflow, *twitchapi.CredentialState) {
	state := twitchapi.NewCredentialState(access, refresh)
	hc := mock.Client()
	return &Workflow{
		Identity:    testIdentity,
		Credentials: state,
		Clips:       &twitchapi.ClipClient{HTTPClient: hc},
		Refresher:   &twitchapi.Refresher{Identity: testIdentity, State: state, HTTPClient: hc},
	}, state
}

func TestRequestClip_CreatedFirstTry(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipResponses(testutil.ClipResponse{Status: http.StatusAccepted, ClipID: "abc123"})
	w, _ := newMockWorkflow(mock, "good-access", "refresh")

	res := w.RequestClip(context.Background(), "alice")

	if res.Status != StatusCreated || res.ClipID != "abc123" {
		t.Fatalf("RequestClip() = %+v, want created abc123", res)
	}
	if !strings.Contains(res.TeamMessage, "https://clips.twitch.tv/abc123") || !strings.Contains(res.TeamMessage, "alice") {
		t.Errorf("team message = %q", res.TeamMessage)
	}
	if !strings.Contains(res.CallerMessage, "https://clips.twitch.tv/abc123") || !strings.Contains(res.CallerMessage, "@alice") {
		t.Errorf("caller message = %q", res.CallerMessage)
	}
	if n := mock.Calls(testutil.TokenPath); n != 0 {
		t.Errorf("expected no refresh, got %d", n)
	}
}

func TestRequestClip_RefreshThenCreated(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipResponses(
		testutil.ClipResponse{Status: http.StatusUnauthorized},
		testutil.ClipResponse{Status: http.StatusAccepted, ClipID: "abc123"},
	)
	mock.MockOAuthTokenResponse("new-access", "new-refresh", 14400)
	w, state := newMockWorkflow(mock, "expired-access", "old-refresh")

	res := w.RequestClip(context.Background(), "alice")

	if res.Status != StatusCreated {
		t.Fatalf("RequestClip() status = %s, want created (%+v)", res.Status, res)
	}
	if !strings.Contains(res.CallerMessage, "clips.twitch.tv/abc123") {
		t.Errorf("caller message = %q, want clip url", res.CallerMessage)
	}
	wantOrder := []string{testutil.ClipsPath, testutil.TokenPath, testutil.ClipsPath}
	if got := mock.CallOrder(); !reflect.DeepEqual(got, wantOrder) {
		t.Errorf("call order = %v, want %v", got, wantOrder)
	}
	if got := state.Current(); got.AccessToken != "new-access" || got.RefreshToken != "new-refresh" {
		t.Errorf("state = %+v, want refreshed pair", got)
	}
}

func TestRequestClip_SecondAttemptUsesNewToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipsByToken(map[string]testutil.ClipResponse{
		"new-access": {Status: http.StatusAccepted, ClipID: "fresh"},
	})
	mock.MockOAuthTokenResponse("new-access", "", 14400)
	w, _ := newMockWorkflow(mock, "expired-access", "old-refresh")

	res := w.RequestClip(context.Background(), "alice")
	if res.Status != StatusCreated || res.ClipID != "fresh" {
		t.Errorf("RequestClip() = %+v, want created with refreshed token", res)
	}
}

func TestRequestClip_RefreshFails(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipResponses(testutil.ClipResponse{Status: http.StatusUnauthorized})
	mock.MockOAuthTokenError(http.StatusBadRequest, `{"status":400,"message":"Invalid refresh token"}`)
	w, state := newMockWorkflow(mock, "expired-access", "revoked-refresh")

	res := w.RequestClip(context.Background(), "alice")

	if res.Status != StatusReauthorize {
		t.Fatalf("RequestClip() status = %s, want reauthorize", res.Status)
	}
	if !strings.Contains(strings.ToLower(res.TeamMessage), "reauthoriz") || !strings.Contains(strings.ToLower(res.CallerMessage), "reauthoriz") {
		t.Errorf("messages should mention reauthorization: %+v", res)
	}
	if !strings.Contains(res.TeamMessage, "could not be refreshed") {
		t.Errorf("team message should name the failed refresh: %q", res.TeamMessage)
	}
	if n := mock.Calls(testutil.ClipsPath); n != 1 {
		t.Errorf("expected 1 clip call, got %d", n)
	}
	if n := mock.Calls(testutil.TokenPath); n != 1 {
		t.Errorf("expected 1 refresh call, got %d", n)
	}
	if got := state.Current().AccessToken; got != "expired-access" {
		t.Errorf("state mutated after failed refresh: %q", got)
	}
}

func TestRequestClip_UnauthorizedAfterRefresh(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipResponses(testutil.ClipResponse{Status: http.StatusUnauthorized})
	mock.MockOAuthTokenResponse("new-but-useless", "", 14400)
	w, _ := newMockWorkflow(mock, "expired-access", "old-refresh")

	res := w.RequestClip(context.Background(), "alice")

	if res.Status != StatusReauthorize {
		t.Errorf("status = %s, want reauthorize", res.Status)
	}
	if strings.Contains(res.TeamMessage, "could not be refreshed") {
		t.Errorf("team message blames the refresh, which succeeded: %q", res.TeamMessage)
	}
	if !strings.Contains(res.TeamMessage, "rejected the refreshed token") {
		t.Errorf("team message = %q, want rejected-token wording", res.TeamMessage)
	}
	if n := mock.Calls(testutil.ClipsPath); n != 2 {
		t.Errorf("expected 2 clip calls, got %d", n)
	}
	if n := mock.Calls(testutil.TokenPath); n != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", n)
	}
}

func TestRequestClip_OfflineNeverRefreshes(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			mock := testutil.NewMockTwitchServer(t)
			mock.MockClipResponses(testutil.ClipResponse{Status: code})
			mock.MockOAuthTokenResponse("new-access", "", 14400)
			w, _ := newMockWorkflow(mock, "access", "refresh")

			res := w.RequestClip(context.Background(), "carol")

			if res.Status != StatusStreamOffline {
				t.Errorf("status = %s, want stream_offline", res.Status)
			}
			if !strings.Contains(res.TeamMessage, "offline") || !strings.Contains(res.CallerMessage, "offline") {
				t.Errorf("messages should say offline: %+v", res)
			}
			if n := mock.Calls(testutil.TokenPath); n != 0 {
				t.Errorf("offline must not refresh, got %d token calls", n)
			}
			if n := mock.Calls(testutil.ClipsPath); n != 1 {
				t.Errorf("expected 1 clip call, got %d", n)
			}
		})
	}
}

func TestRequestClip_UpstreamError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipResponses(testutil.ClipResponse{Status: http.StatusServiceUnavailable})
	w, _ := newMockWorkflow(mock, "access", "refresh")

	res := w.RequestClip(context.Background(), "dave")

	if res.Status != StatusUpstreamError {
		t.Fatalf("status = %s, want upstream_error", res.Status)
	}
	if !strings.Contains(res.TeamMessage, "503") || !strings.Contains(res.CallerMessage, "503") {
		t.Errorf("messages should carry the status code: %+v", res)
	}
	if n := mock.Calls(testutil.TokenPath); n != 0 {
		t.Errorf("upstream error must not refresh, got %d", n)
	}
}

func TestRequestClip_NoCachingAcrossCalls(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	var mu sync.Mutex
	n := 0
	mock.Handle(testutil.ClipsPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		id := fmt.Sprintf("clip-%d", n)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprintf(w, `{"data":[{"id":%q}]}`, id)
	})
	w, _ := newMockWorkflow(mock, "access", "refresh")

	first := w.RequestClip(context.Background(), "alice")
	second := w.RequestClip(context.Background(), "alice")

	if first.Status != StatusCreated || second.Status != StatusCreated {
		t.Fatalf("both calls should create: %+v / %+v", first, second)
	}
	if first.ClipID == second.ClipID {
		t.Errorf("expected distinct clip ids, both %q", first.ClipID)
	}
	if n := mock.Calls(testutil.ClipsPath); n != 2 {
		t.Errorf("expected 2 clip calls, got %d", n)
	}
}

func TestRequestClip_ConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockClipsByToken(map[string]testutil.ClipResponse{
		"new-access": {Status: http.StatusAccepted, ClipID: "abc123"},
	})
	mock.MockOAuthTokenResponse("new-access", "rotated-refresh", 14400)
	w, _ := newMockWorkflow(mock, "expired-access", "old-refresh")

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = w.RequestClip(context.Background(), fmt.Sprintf("user%d", i))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.Status != StatusCreated {
			t.Errorf("request %d status = %s, want created", i, res.Status)
		}
	}
	if n := mock.Calls(testutil.TokenPath); n != 1 {
		t.Errorf("expected exactly 1 refresh for concurrent 401s, got %d", n)
	}
}

// fakes for tests that don't need HTTP

type fakeClips struct {
	outcomes []twitchapi.ClipOutcome
	tokens   []string
}

func (f *fakeClips) CreateClip(_ context.Context, _ twitchapi.BroadcasterIdentity, accessToken string) twitchapi.ClipOutcome {
	f.tokens = append(f.tokens, accessToken)
	i := len(f.tokens) - 1
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	return f.outcomes[i]
}

type fakeRefresher struct {
	state *twitchapi.CredentialState
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (twitchapi.CredentialPair, error) {
	f.calls++
	if f.err != nil {
		return twitchapi.CredentialPair{}, f.err
	}
	f.state.Replace("refreshed", "")
	return f.state.Current(), nil
}

func TestRequestClip_Timeout(t *testing.T) {
	state := twitchapi.NewCredentialState("a", "r")
	clips := &fakeClips{outcomes: []twitchapi.ClipOutcome{{Kind: twitchapi.ClipUpstreamError, Timeout: true}}}
	w := &Workflow{Identity: testIdentity, Credentials: state, Clips: clips, Refresher: &fakeRefresher{state: state}}

	res := w.RequestClip(context.Background(), "erin")
	if res.Status != StatusUpstreamError {
		t.Fatalf("status = %s, want upstream_error", res.Status)
	}
	if !strings.Contains(res.CallerMessage, "timed out") {
		t.Errorf("caller message should mention timeout: %q", res.CallerMessage)
	}
}

func TestRequestClip_RefreshTimeoutIsReauthorize(t *testing.T) {
	state := twitchapi.NewCredentialState("a", "r")
	clips := &fakeClips{outcomes: []twitchapi.ClipOutcome{{Kind: twitchapi.ClipUnauthorized}}}
	ref := &fakeRefresher{state: state, err: &twitchapi.RefreshError{Timeout: true}}
	w := &Workflow{Identity: testIdentity, Credentials: state, Clips: clips, Refresher: ref}

	res := w.RequestClip(context.Background(), "erin")
	if res.Status != StatusReauthorize {
		t.Errorf("status = %s, want reauthorize", res.Status)
	}
	if ref.calls != 1 || len(clips.tokens) != 1 {
		t.Errorf("refresh calls = %d, clip calls = %d; want 1/1", ref.calls, len(clips.tokens))
	}
}

func TestRequestClip_RetryUsesRefreshedToken(t *testing.T) {
	state := twitchapi.NewCredentialState("expired", "r")
	clips := &fakeClips{outcomes: []twitchapi.ClipOutcome{
		{Kind: twitchapi.ClipUnauthorized},
		{Kind: twitchapi.ClipCreated, ClipID: "xyz"},
	}}
	ref := &fakeRefresher{state: state}
	w := &Workflow{Identity: testIdentity, Credentials: state, Clips: clips, Refresher: ref, ClipHost: "clips.example.test"}

	res := w.RequestClip(context.Background(), "frank")
	if res.Status != StatusCreated {
		t.Fatalf("status = %s, want created", res.Status)
	}
	if want := []string{"expired", "refreshed"}; !reflect.DeepEqual(clips.tokens, want) {
		t.Errorf("tokens used = %v, want %v", clips.tokens, want)
	}
	if !strings.Contains(res.CallerMessage, "https://clips.example.test/xyz") {
		t.Errorf("caller message = %q, want custom host url", res.CallerMessage)
	}
}

func TestUpstreamErrorUnreachable(t *testing.T) {
	res := upstreamError("gina", 0, false)
	if !strings.Contains(res.TeamMessage, "could not be reached") {
		t.Errorf("team message = %q", res.TeamMessage)
	}
}
