// Package twitchapi contains minimal helpers to interact with Twitch: the Helix clip
// endpoint, the OAuth token endpoint, and the in-memory credential state they share.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const helixClipsURL = "https://api.twitch.tv/helix/clips"

// ClipOutcomeKind classifies a single clip-creation attempt.
type ClipOutcomeKind int

const (
	ClipCreated ClipOutcomeKind = iota
	ClipUnauthorized
	ClipStreamOffline
	ClipUpstreamError
)

// String returns the metrics/log label for the outcome kind.
func (k ClipOutcomeKind) String() string {
	switch k {
	case ClipCreated:
		return "created"
	case ClipUnauthorized:
		return "unauthorized"
	case ClipStreamOffline:
		return "stream_offline"
	default:
		return "upstream_error"
	}
}

// ClipOutcome is the result of one POST /helix/clips.
// ClipID is set for ClipCreated; StatusCode and Timeout describe ClipUpstreamError.
type ClipOutcome struct {
	Kind       ClipOutcomeKind
	ClipID     string
	StatusCode int
	Timeout    bool
	Err        error
}

// ClipClient issues clip-creation requests. It never retries and never touches credentials.
type ClipClient struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c *ClipClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// CreateClip asks Twitch to clip the broadcaster's live stream using accessToken.
func (c *ClipClient) CreateClip(ctx context.Context, id BroadcasterIdentity, accessToken string) ClipOutcome {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"broadcaster_id": id.BroadcasterID})
	if err != nil {
		return ClipOutcome{Kind: ClipUpstreamError, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, helixClipsURL, bytes.NewReader(payload))
	if err != nil {
		return ClipOutcome{Kind: ClipUpstreamError, Err: err}
	}
	req.Header.Set("Client-Id", id.ClientID)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return ClipOutcome{Kind: ClipUpstreamError, Timeout: isTimeout(err), Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	switch resp.StatusCode {
	case http.StatusAccepted:
		var body struct {
			Data []struct {
				ID      string `json:"id"`
				EditURL string `json:"edit_url"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return ClipOutcome{Kind: ClipUpstreamError, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode clip response: %w", err)}
		}
		if len(body.Data) == 0 || body.Data[0].ID == "" {
			return ClipOutcome{Kind: ClipUpstreamError, StatusCode: resp.StatusCode, Err: fmt.Errorf("clip response missing data")}
		}
		return ClipOutcome{Kind: ClipCreated, ClipID: body.Data[0].ID}
	case http.StatusUnauthorized:
		return ClipOutcome{Kind: ClipUnauthorized, StatusCode: resp.StatusCode}
	case http.StatusBadRequest, http.StatusNotFound:
		// Both codes have been observed for "broadcaster is not live".
		return ClipOutcome{Kind: ClipStreamOffline, StatusCode: resp.StatusCode}
	default:
		return ClipOutcome{Kind: ClipUpstreamError, StatusCode: resp.StatusCode}
	}
}
