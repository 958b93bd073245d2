// Package command routes inbound chat commands: !clip goes through the clip
// workflow, everything else is relayed verbatim to the team channel.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/onnwee/clip-relay/clip"
	"github.com/onnwee/clip-relay/config"
	"github.com/onnwee/clip-relay/telemetry"
)

// ErrInvalidRequest is returned when a request lacks its command or user.
var ErrInvalidRequest = errors.New("missing required fields")

// DefaultNotifyTimeout bounds a single team notification.
const DefaultNotifyTimeout = 5 * time.Second

// Request is one inbound command invocation.
type Request struct {
	Command string `json:"command" validate:"required"`
	User    string `json:"user" validate:"required"`
	Message string `json:"message"`
}

// ClipRequester runs the clip workflow for a user.
type ClipRequester interface {
	RequestClip(ctx context.Context, user string) clip.Result
}

// Notifier delivers a message to the team channel.
type Notifier interface {
	Notify(ctx context.Context, content string) error
}

// History stores clip workflow results.
type History interface {
	RecordClip(ctx context.Context, user, clipID, status string) error
}

// Dispatcher turns a Request into a caller reply and a team notification.
type Dispatcher struct {
	Clips         ClipRequester
	Notifier      Notifier
	History       History // optional
	NotifyTimeout time.Duration
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if tag, _, _ := strings.Cut(fld.Tag.Get("json"), ","); tag != "" && tag != "-" {
				return tag
			}
			return fld.Name
		})
		validate = v
	})
	return validate
}

// Validate trims the request and checks required fields.
func (r *Request) Validate() error {
	r.Command = strings.TrimSpace(r.Command)
	r.User = strings.TrimSpace(r.User)
	r.Message = strings.TrimSpace(r.Message)
	if err := getValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// IsClip reports whether cmd is the clip command.
func IsClip(cmd string) bool {
	return strings.EqualFold(strings.TrimSpace(cmd), config.DefaultClipCommand)
}

// Dispatch handles req and returns the text for the caller. The only error is
// ErrInvalidRequest; upstream failures are rendered into the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "command"), slog.String("command", req.Command), slog.String("user", req.User))

	var team, caller string
	if IsClip(req.Command) {
		telemetry.RecordCommand("clip")
		// a started workflow runs to completion even if the caller goes away
		res := d.Clips.RequestClip(context.WithoutCancel(ctx), req.User)
		team, caller = res.TeamMessage, res.CallerMessage
		if req.Message != "" {
			team += " — " + req.Message
		}
		d.record(ctx, log, req.User, res)
	} else {
		telemetry.RecordCommand("relay")
		team, caller = relayMessages(req)
	}

	d.notify(ctx, log, team)
	return caller, nil
}

func relayMessages(req Request) (team, caller string) {
	team = fmt.Sprintf("📣 **%s** used `%s`", req.User, req.Command)
	if req.Message != "" {
		team += " — " + req.Message
	}
	return team, fmt.Sprintf("✅ %s sent to the team!", req.Command)
}

func (d *Dispatcher) notify(ctx context.Context, log *slog.Logger, content string) {
	if d.Notifier == nil {
		return
	}
	timeout := d.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	err := d.Notifier.Notify(nctx, content)
	telemetry.RecordNotification(err == nil)
	if err != nil {
		log.Warn("team notification failed", slog.Any("err", err))
	}
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, user string, res clip.Result) {
	if d.History == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.History.RecordClip(hctx, user, res.ClipID, string(res.Status)); err != nil {
		log.Warn("record clip history failed", slog.Any("err", err))
	}
}
