package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET", "DISCORD_WEBHOOK_URL",
		"CHANNELS", "WATCH_FILE", "POLL_INTERVAL", "HTTP_ADDR",
		"MAX_CONCURRENT_TICKS", "MAX_CONCURRENT_THUMBNAILS", "HELIX_RPS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MaxConcurrentTicks != 4 || cfg.MaxConcurrentThumbnails != 2 {
		t.Errorf("concurrency defaults = %d/%d, want 4/2", cfg.MaxConcurrentTicks, cfg.MaxConcurrentThumbnails)
	}
	if cfg.HelixRPS != 5 {
		t.Errorf("HelixRPS = %v, want 5", cfg.HelixRPS)
	}
}

func TestLoadChannelsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHANNELS", " SomeChannel, other , ,somechannel")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"somechannel", "other", "somechannel"}
	if len(cfg.Channels) != len(want) {
		t.Fatalf("Channels = %v, want %v", cfg.Channels, want)
	}
	for i := range want {
		if cfg.Channels[i] != want[i] {
			t.Fatalf("Channels = %v, want %v", cfg.Channels, want)
		}
	}
}

func TestLoadRejectsTinyInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "1s")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject sub-minimum interval")
	}
}

func TestLoadWatchFileMergesAndOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "watch.yaml")
	content := "channels:\n  - Alpha\n  - beta\ninterval: 45s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHANNELS", "beta,gamma")
	t.Setenv("WATCH_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want file override 45s", cfg.PollInterval)
	}
	seen := map[string]bool{}
	for _, c := range cfg.Channels {
		if seen[c] {
			t.Fatalf("duplicate channel %q in %v", c, cfg.Channels)
		}
		seen[c] = true
	}
	for _, want := range []string{"alpha", "beta", "gamma"} {
		if !seen[want] {
			t.Errorf("Channels = %v, missing %q", cfg.Channels, want)
		}
	}
}

func TestLoadWatchFileInvalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "watch.yaml")
	if err := os.WriteFile(path, []byte("channels: [a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WATCH_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on unparseable watch file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		TwitchClientID:     "id",
		TwitchClientSecret: "secret",
		DiscordWebhookURL:  "https://discord.example/webhook",
		Channels:           []string{"somechannel"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.TwitchClientID = "" }},
		{"missing secret", func(c *Config) { c.TwitchClientSecret = "" }},
		{"missing webhook", func(c *Config) { c.DiscordWebhookURL = "" }},
		{"no channels", func(c *Config) { c.Channels = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := *cfg
			bad.Channels = append([]string{}, cfg.Channels...)
			tt.mutate(&bad)
			if err := bad.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
