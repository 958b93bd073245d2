package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TWITCH_SCOPES", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	t.Setenv("NOTIFY_TIMEOUT", "")
	t.Setenv("CHAT_COMMANDS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TwitchScopes != "clips:edit" {
		t.Errorf("TwitchScopes = %q, want clips:edit", cfg.TwitchScopes)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 10s", cfg.UpstreamTimeout)
	}
	if cfg.NotifyTimeout != 5*time.Second {
		t.Errorf("NotifyTimeout = %v, want 5s", cfg.NotifyTimeout)
	}
	if len(cfg.ChatCommands) != 1 || cfg.ChatCommands[0] != DefaultClipCommand {
		t.Errorf("ChatCommands = %v, want [%s]", cfg.ChatCommands, DefaultClipCommand)
	}
}

func TestLoadStripsOAuthPrefix(t *testing.T) {
	t.Setenv("TWITCH_ACCESS_TOKEN", "oauth:abc123")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TwitchAccessToken != "abc123" {
		t.Errorf("TwitchAccessToken = %q, want abc123", cfg.TwitchAccessToken)
	}
}

func TestLoadChatCommands(t *testing.T) {
	t.Setenv("CHAT_COMMANDS", " !Clip, !shoutout ,,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"!clip", "!shoutout"}
	if len(cfg.ChatCommands) != len(want) {
		t.Fatalf("ChatCommands = %v, want %v", cfg.ChatCommands, want)
	}
	for i := range want {
		if cfg.ChatCommands[i] != want[i] {
			t.Errorf("ChatCommands[%d] = %q, want %q", i, cfg.ChatCommands[i], want[i])
		}
	}
}

func TestLoadInvalidTimeout(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable upstream", "UPSTREAM_TIMEOUT", "soon"},
		{"negative upstream", "UPSTREAM_TIMEOUT", "-1s"},
		{"zero notify", "NOTIFY_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestValidateClipReady(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	t.Setenv("TWITCH_CLIENT_SECRET", "secret")
	t.Setenv("TWITCH_BROADCASTER_ID", "1234")
	t.Setenv("TWITCH_ACCESS_TOKEN", "access")
	cfg, _ := Load()
	if err := cfg.ValidateClipReady(); err != nil {
		t.Errorf("expected valid clip config, got %v", err)
	}
	if err := os.Unsetenv("TWITCH_BROADCASTER_ID"); err != nil {
		t.Fatalf("failed to unset TWITCH_BROADCASTER_ID: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateClipReady(); err == nil {
		t.Errorf("expected error when broadcaster id missing")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "chan")
	t.Setenv("TWITCH_BOT_USERNAME", "bot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:token")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}
	if err := os.Unsetenv("TWITCH_CHANNEL"); err != nil {
		t.Fatalf("failed to unset TWITCH_CHANNEL: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when missing twitch envs")
	}
}

func TestLoadAdminAndRateLimit(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "s3cret")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "20")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AdminToken != "s3cret" {
		t.Errorf("AdminToken = %q", cfg.AdminToken)
	}
	if cfg.RateLimitRequests != 20 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %d per %v, want 20 per 30s", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "lots")
	if _, err := Load(); err == nil {
		t.Error("Load() with non-numeric RATE_LIMIT_REQUESTS_PER_IP should fail")
	}
}
