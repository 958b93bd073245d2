package clip

import "fmt"

// Status is the terminal state of a clip workflow.
type Status string

const (
	StatusCreated       Status = "created"
	StatusStreamOffline Status = "stream_offline"
	StatusUpstreamError Status = "upstream_error"
	StatusReauthorize   Status = "reauthorize"
)

// Result carries the two audience-specific messages of a finished workflow.
// CallerMessage is plain text shown verbatim in chat.
type Result struct {
	TeamMessage   string
	CallerMessage string
	Status        Status
	ClipID        string
}

// URL returns the public clip link for id on host.
func URL(host, id string) string {
	return "https://" + host + "/" + id
}

func created(host, user, id string) Result {
	u := URL(host, id)
	return Result{
		TeamMessage:   fmt.Sprintf("🎬 Clip created by **%s**: %s", user, u),
		CallerMessage: fmt.Sprintf("@%s here's your clip: %s", user, u),
		Status:        StatusCreated,
		ClipID:        id,
	}
}

func offline(user string) Result {
	return Result{
		TeamMessage:   fmt.Sprintf("⚠️ Clip requested by **%s**, but the stream is offline.", user),
		CallerMessage: fmt.Sprintf("@%s can't clip right now, the stream is offline.", user),
		Status:        StatusStreamOffline,
	}
}

func upstreamError(user string, code int, timeout bool) Result {
	cause := fmt.Sprintf("Twitch returned HTTP %d", code)
	switch {
	case timeout:
		cause = "Twitch timed out"
	case code == 0:
		cause = "Twitch could not be reached"
	}
	return Result{
		TeamMessage:   fmt.Sprintf("❌ Clip requested by **%s** failed: %s.", user, cause),
		CallerMessage: fmt.Sprintf("@%s clip failed (%s). Try again shortly.", user, cause),
		Status:        StatusUpstreamError,
	}
}

func reauthorize(user string) Result {
	return Result{
		TeamMessage:   fmt.Sprintf("🔑 Clip requested by **%s** failed: Twitch authorization expired and could not be refreshed. Reauthorization required.", user),
		CallerMessage: fmt.Sprintf("@%s clip failed: the bot needs to be reauthorized with Twitch.", user),
		Status:        StatusReauthorize,
	}
}

// rejectedAfterRefresh covers a refresh that succeeded but whose new token Twitch
// still refuses, typically a missing clips:edit scope.
func rejectedAfterRefresh(user string) Result {
	return Result{
		TeamMessage:   fmt.Sprintf("🔑 Clip requested by **%s** failed: Twitch rejected the refreshed token. Reauthorization required.", user),
		CallerMessage: fmt.Sprintf("@%s clip failed: the bot needs to be reauthorized with Twitch.", user),
		Status:        StatusReauthorize,
	}
}
