// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required Twitch credentials, use ValidateClipReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultClipCommand is the chat command that triggers clip creation.
const DefaultClipCommand = "!clip"

type Config struct {
	// Twitch API identity
	TwitchClientID      string
	TwitchClientSecret  string
	TwitchBroadcasterID string
	TwitchAccessToken   string
	TwitchRefreshToken  string
	TwitchRedirectURI   string
	TwitchScopes        string

	// Twitch chat listener
	ChatListenerEnabled bool
	TwitchChannel       string
	TwitchBotUsername   string
	TwitchOAuthToken    string
	ChatCommands        []string

	// Notifications
	DiscordWebhookURL string

	// Timeouts for outbound calls
	UpstreamTimeout time.Duration
	NotifyTimeout   time.Duration

	// HTTP
	HTTPAddr string

	// Admin endpoints (/auth/twitch/start, /clips)
	AdminUsername string
	AdminPassword string
	AdminToken    string

	// Per-IP limit on /twitch-command; zero disables it
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Database (optional clip history)
	DBDsn string
}

// Load reads environment variables and applies defaults. It doesn't fail if Twitch creds are missing;
// use ValidateClipReady() when clip creation is required. Missing optional variables disable features
// (e.g., no DB_DSN means no clip history, no DISCORD_WEBHOOK_URL means notifications are only logged).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchBroadcasterID = os.Getenv("TWITCH_BROADCASTER_ID")
	cfg.TwitchAccessToken = strings.TrimPrefix(os.Getenv("TWITCH_ACCESS_TOKEN"), "oauth:")
	cfg.TwitchRefreshToken = os.Getenv("TWITCH_REFRESH_TOKEN")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	cfg.TwitchScopes = os.Getenv("TWITCH_SCOPES")
	if cfg.TwitchScopes == "" {
		cfg.TwitchScopes = "clips:edit"
	}

	// Chat listener
	cfg.ChatListenerEnabled = os.Getenv("CHAT_LISTENER_ENABLED") == "1"
	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.ChatCommands = []string{DefaultClipCommand}
	if v := os.Getenv("CHAT_COMMANDS"); v != "" {
		cfg.ChatCommands = cfg.ChatCommands[:0]
		for _, c := range strings.Split(v, ",") {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				cfg.ChatCommands = append(cfg.ChatCommands, c)
			}
		}
	}

	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")

	var err error
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = durationEnv("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS_PER_IP: %q", v)
		}
		cfg.RateLimitRequests = n
	}
	if cfg.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, v)
	}
	return d, nil
}

// ValidateClipReady checks the fields required to create clips on the broadcaster's behalf.
func (c *Config) ValidateClipReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" || c.TwitchBroadcasterID == "" || c.TwitchAccessToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET, TWITCH_BROADCASTER_ID, TWITCH_ACCESS_TOKEN")
	}
	return nil
}

// ValidateChatReady checks required fields when the chat listener is enabled.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}
