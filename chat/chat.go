package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/clip-relay/command"
	"github.com/onnwee/clip-relay/telemetry"
)

// Dispatcher handles one command request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (string, error)
}

// Sayer posts a line into a channel.
type Sayer interface {
	Say(channel, text string)
}

// Listener relays allow-listed chat commands to the dispatcher.
type Listener struct {
	Channel   string
	Username  string
	OAuth     string
	Commands  []string
	Dispatch  Dispatcher
	allowList map[string]struct{}
	once      sync.Once
}

// parseCommand splits a chat line into its command word and the rest.
func parseCommand(text string) (cmd, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "!") {
		return "", "", false
	}
	cmd, rest, _ = strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest), true
}

func (l *Listener) allowed(cmd string) bool {
	l.once.Do(func() {
		l.allowList = make(map[string]struct{}, len(l.Commands))
		for _, c := range l.Commands {
			l.allowList[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
		}
	})
	_, ok := l.allowList[cmd]
	return ok
}

// handleMessage dispatches msg when it carries an allow-listed command and
// returns the reply for the channel.
func (l *Listener) handleMessage(ctx context.Context, msg twitch.PrivateMessage) (string, bool) {
	cmd, rest, ok := parseCommand(msg.Message)
	if !ok || !l.allowed(cmd) {
		return "", false
	}
	user := msg.User.DisplayName
	if user == "" {
		user = msg.User.Name
	}
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "chat"), slog.String("command", cmd), slog.String("user", user))

	reply, err := l.Dispatch.Dispatch(ctx, command.Request{Command: cmd, User: user, Message: rest})
	if err != nil {
		log.Warn("chat command rejected", slog.Any("err", err))
		return "", false
	}
	log.Debug("chat command handled")
	return reply, true
}

// Run connects to Twitch IRC and blocks until ctx is cancelled or the
// connection fails.
func (l *Listener) Run(ctx context.Context) error {
	oauth := l.OAuth
	if !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}
	client := twitch.NewClient(l.Username, oauth)
	l.register(ctx, client)

	go func() {
		<-ctx.Done()
		_ = client.Disconnect()
	}()

	client.Join(l.Channel)
	slog.Info("chat listener connecting", slog.String("channel", l.Channel), slog.Any("commands", l.Commands))
	err := client.Connect()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) register(ctx context.Context, client *twitch.Client) {
	client.OnConnect(func() {
		slog.Info("chat listener connected", slog.String("channel", l.Channel))
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		// the clip workflow can take seconds; keep the IRC reader free
		go l.reply(ctx, client, msg)
	})
}

func (l *Listener) reply(ctx context.Context, s Sayer, msg twitch.PrivateMessage) {
	if text, ok := l.handleMessage(ctx, msg); ok && text != "" {
		s.Say(msg.Channel, text)
	}
}
