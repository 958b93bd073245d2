package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/clip-relay/telemetry"
)

// DefaultTimeout bounds every outbound Twitch call when no explicit timeout is configured.
const DefaultTimeout = 10 * time.Second

// RefreshError reports a failed refresh_token exchange. Timeout is set instead of a
// status code when the token endpoint did not answer in time.
type RefreshError struct {
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *RefreshError) Error() string {
	switch {
	case e.Timeout:
		return "twitch refresh timed out"
	case e.StatusCode != 0:
		return fmt.Sprintf("twitch refresh failed: %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "twitch refresh failed: " + e.Err.Error()
	default:
		return "twitch refresh failed"
	}
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Refresher exchanges the broadcaster's refresh token for a new access token and
// stores the result in State. Concurrent refreshes are coalesced into one exchange.
type Refresher struct {
	Identity   BroadcasterIdentity
	State      *CredentialState
	HTTPClient *http.Client
	Timeout    time.Duration

	group singleflight.Group
}

func (r *Refresher) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

// Refresh renews the access token that just failed with 401. If another caller already
// replaced staleAccess, the current pair is returned without contacting Twitch.
func (r *Refresher) Refresh(ctx context.Context, staleAccess string) (CredentialPair, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitchapi", "token.refresh")
	defer span.End()

	v, err, shared := r.group.Do("refresh", func() (any, error) {
		cur := r.State.Current()
		if cur.AccessToken != staleAccess {
			telemetry.RecordRefresh("reused")
			return cur, nil
		}
		pair, err := r.Exchange(context.WithoutCancel(ctx), cur.RefreshToken)
		if err != nil {
			telemetry.RecordRefresh("failure")
			return CredentialPair{}, err
		}
		telemetry.RecordRefresh("success")
		return pair, nil
	})
	if shared {
		slog.Debug("twitch refresh coalesced", slog.String("component", "twitch_oauth"))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return CredentialPair{}, err
	}
	telemetry.SetSpanSuccess(span)
	return v.(CredentialPair), nil
}

// Exchange performs exactly one refresh_token grant against the Twitch token endpoint.
// On success the new pair replaces the one in State; on failure State is left untouched.
func (r *Refresher) Exchange(ctx context.Context, refreshToken string) (CredentialPair, error) {
	if refreshToken == "" {
		return CredentialPair{}, &RefreshError{Err: errors.New("missing refresh token")}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	capture := &statusCapture{base: http.DefaultTransport}
	hc := &http.Client{Transport: capture}
	if r.HTTPClient != nil {
		if r.HTTPClient.Transport != nil {
			capture.base = r.HTTPClient.Transport
		}
		hc.Timeout = r.HTTPClient.Timeout
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	conf := &oauth2.Config{
		ClientID:     r.Identity.ClientID,
		ClientSecret: r.Identity.ClientSecret,
		Endpoint:     tokenEndpoint,
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		re := &RefreshError{Err: err, Timeout: isTimeout(err)}
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			if rErr.Response != nil {
				re.StatusCode = rErr.Response.StatusCode
			}
			re.Body = string(rErr.Body)
		} else if !re.Timeout {
			// 200 without access_token
			re.StatusCode = capture.status
		}
		slog.Warn("twitch token refresh failed", slog.String("component", "twitch_oauth"), slog.Int("status", re.StatusCode), slog.Bool("timeout", re.Timeout))
		return CredentialPair{}, re
	}

	if capture.status != http.StatusOK {
		re := &RefreshError{StatusCode: capture.status, Body: "unexpected success status"}
		slog.Warn("twitch token refresh failed", slog.String("component", "twitch_oauth"), slog.Int("status", re.StatusCode))
		return CredentialPair{}, re
	}

	pair := CredentialPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	r.State.Replace(pair.AccessToken, pair.RefreshToken)
	slog.Info("twitch token refreshed", slog.String("component", "twitch_oauth"), slog.String("tail", maskToken(pair.AccessToken)))
	return pair, nil
}

// statusCapture remembers the last HTTP status seen so a malformed 200 can be reported.
type statusCapture struct {
	base   http.RoundTripper
	status int
}

func (s *statusCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if resp != nil {
		s.status = resp.StatusCode
	}
	return resp, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func maskToken(tok string) string {
	if len(tok) <= 6 {
		return "***"
	}
	return "***" + tok[len(tok)-6:]
}
