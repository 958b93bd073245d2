// Package clip runs the !clip workflow: create a clip on the broadcaster's stream,
// refreshing an expired access token at most once, and turn the outcome into the
// messages shown to the team channel and to the chat user.
package clip

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/clip-relay/telemetry"
	"github.com/onnwee/clip-relay/twitchapi"
)

// DefaultClipHost is where created clips are viewable.
const DefaultClipHost = "clips.twitch.tv"

// ClipCreator performs one clip-creation attempt.
type ClipCreator interface {
	CreateClip(ctx context.Context, id twitchapi.BroadcasterIdentity, accessToken string) twitchapi.ClipOutcome
}

// TokenRefresher renews the access token after staleAccess was rejected.
type TokenRefresher interface {
	Refresh(ctx context.Context, staleAccess string) (twitchapi.CredentialPair, error)
}

// CredentialReader exposes the current credential pair.
type CredentialReader interface {
	Current() twitchapi.CredentialPair
}

// Workflow composes clip creation and token refresh into a retry-once state machine.
type Workflow struct {
	Identity    twitchapi.BroadcasterIdentity
	Credentials CredentialReader
	Clips       ClipCreator
	Refresher   TokenRefresher
	ClipHost    string
}

type phase int

const (
	firstAttempt phase = iota
	afterRefresh
)

// RequestClip creates a clip for user and never returns an error: every failure is
// rendered into the Result messages.
func (w *Workflow) RequestClip(ctx context.Context, user string) Result {
	ctx, span := telemetry.StartSpan(ctx, "clip", "clip.request", attribute.String("clip.user", user))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "clip"), slog.String("user", user))

	var res Result
	telemetry.TimeFunc(telemetry.ClipWorkflowDuration, func() {
		res = w.run(ctx, log, user)
	})
	span.SetAttributes(attribute.String("clip.status", string(res.Status)))
	telemetry.RecordClipOutcome(string(res.Status))
	if res.Status == StatusCreated {
		telemetry.SetSpanSuccess(span)
	}
	return res
}

func (w *Workflow) run(ctx context.Context, log *slog.Logger, user string) Result {
	for p := firstAttempt; ; p = afterRefresh {
		access := w.Credentials.Current().AccessToken
		out := w.Clips.CreateClip(ctx, w.Identity, access)

		switch out.Kind {
		case twitchapi.ClipCreated:
			log.Info("clip created", slog.String("clip_id", out.ClipID))
			return created(w.host(), user, out.ClipID)
		case twitchapi.ClipUnauthorized:
			if p == afterRefresh {
				log.Warn("clip still unauthorized after token refresh")
				return rejectedAfterRefresh(user)
			}
			if _, err := w.Refresher.Refresh(ctx, access); err != nil {
				log.Warn("token refresh failed; reauthorization required", slog.Any("err", err))
				return reauthorize(user)
			}
			log.Info("access token refreshed; retrying clip")
		case twitchapi.ClipStreamOffline:
			log.Info("clip rejected: stream offline", slog.Int("status", out.StatusCode))
			return offline(user)
		default:
			log.Warn("clip failed upstream", slog.Int("status", out.StatusCode), slog.Bool("timeout", out.Timeout), slog.Any("err", out.Err))
			return upstreamError(user, out.StatusCode, out.Timeout)
		}
	}
}

func (w *Workflow) host() string {
	if w.ClipHost != "" {
		return w.ClipHost
	}
	return DefaultClipHost
}
