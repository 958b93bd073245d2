// Command clip-relay is the entrypoint for the chat command relay.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the Twitch credential state, clip client, and token refresher.
//   - Optionally connects to Postgres for the clip history and runs migrations.
//   - Optionally starts the Twitch IRC command listener.
//   - Exposes the HTTP server with /twitch-command, /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/clip-relay/chat"
	"github.com/onnwee/clip-relay/clip"
	"github.com/onnwee/clip-relay/command"
	"github.com/onnwee/clip-relay/config"
	"github.com/onnwee/clip-relay/db"
	"github.com/onnwee/clip-relay/notify"
	"github.com/onnwee/clip-relay/server"
	"github.com/onnwee/clip-relay/telemetry"
	"github.com/onnwee/clip-relay/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateClipReady(); err != nil {
		// relay commands still work; !clip will answer with an error message
		slog.Warn("clip creation not fully configured", slog.Any("err", err))
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("clip-relay", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	identity := twitchapi.BroadcasterIdentity{
		ClientID:      cfg.TwitchClientID,
		ClientSecret:  cfg.TwitchClientSecret,
		BroadcasterID: cfg.TwitchBroadcasterID,
	}
	creds := twitchapi.NewCredentialState(cfg.TwitchAccessToken, cfg.TwitchRefreshToken)
	httpClient := &http.Client{}

	workflow := &clip.Workflow{
		Identity:    identity,
		Credentials: creds,
		Clips:       &twitchapi.ClipClient{HTTPClient: httpClient, Timeout: cfg.UpstreamTimeout},
		Refresher:   &twitchapi.Refresher{Identity: identity, State: creds, HTTPClient: httpClient, Timeout: cfg.UpstreamTimeout},
	}

	var notifier command.Notifier = notify.Log{}
	if cfg.DiscordWebhookURL != "" {
		notifier = &notify.Discord{WebhookURL: cfg.DiscordWebhookURL, HTTPClient: httpClient, Timeout: cfg.NotifyTimeout}
	} else {
		slog.Info("DISCORD_WEBHOOK_URL not set; team messages are only logged")
	}

	dispatcher := &command.Dispatcher{Clips: workflow, Notifier: notifier, NotifyTimeout: cfg.NotifyTimeout}
	deps := server.Deps{Dispatcher: dispatcher, Credentials: creds, OAuthClient: httpClient}

	if cfg.DBDsn != "" {
		database := openHistory(ctx, cfg.DBDsn)
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		history := &db.ClipHistory{DB: database}
		dispatcher.History = history
		deps.History = history
	} else {
		slog.Info("clip history disabled (DB_DSN not set)")
	}

	if cfg.ChatListenerEnabled {
		if err := cfg.ValidateChatReady(); err != nil {
			slog.Error("chat listener enabled but not configured", slog.Any("err", err))
			os.Exit(1)
		}
		listener := &chat.Listener{
			Channel:  cfg.TwitchChannel,
			Username: cfg.TwitchBotUsername,
			OAuth:    cfg.TwitchOAuthToken,
			Commands: cfg.ChatCommands,
			Dispatch: dispatcher,
		}
		go func() {
			if err := listener.Run(ctx); err != nil {
				slog.Error("chat listener exited with error", slog.Any("err", err))
			}
		}()
	}

	if err := server.Start(ctx, cfg, deps); err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
		stop()
		return
	}
	slog.Info("shutting down")
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

func openHistory(ctx context.Context, dsn string) *sql.DB {
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}
	return database
}
