// Package config loads environment variables and provides a typed Config used
// across the service. It applies sensible defaults so the binary can run
// locally with minimal setup; required credentials are checked by Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Twitch
	TwitchClientID     string
	TwitchClientSecret string

	// Notifications
	DiscordWebhookURL string

	// Watch set
	Channels     []string
	WatchFile    string
	PollInterval time.Duration

	// Concurrency / rate limits
	MaxConcurrentTicks      int
	MaxConcurrentThumbnails int
	HelixRPS                float64

	// Ops server
	HTTPAddr string
}

const minPollInterval = 5 * time.Second

// Load reads environment variables and applies defaults. Channel logins come
// from CHANNELS (comma-separated) and/or the WATCH_FILE YAML list; both may
// be set, the union is watched.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")

	cfg.Channels = Channels(os.Getenv("CHANNELS"))
	cfg.WatchFile = os.Getenv("WATCH_FILE")

	cfg.PollInterval = 30 * time.Second
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		if d < minPollInterval {
			return nil, fmt.Errorf("POLL_INTERVAL %s below minimum %s", d, minPollInterval)
		}
		cfg.PollInterval = d
	}

	cfg.MaxConcurrentTicks = intEnv("MAX_CONCURRENT_TICKS", 4)
	cfg.MaxConcurrentThumbnails = intEnv("MAX_CONCURRENT_THUMBNAILS", 2)

	cfg.HelixRPS = 5
	if v := os.Getenv("HELIX_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid HELIX_RPS %q", v)
		}
		cfg.HelixRPS = f
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.WatchFile != "" {
		wf, err := LoadWatchFile(cfg.WatchFile)
		if err != nil {
			return nil, fmt.Errorf("load watch file: %w", err)
		}
		cfg.Channels = mergeChannels(cfg.Channels, wf.Channels)
		if wf.Interval > 0 {
			if wf.Interval < minPollInterval {
				return nil, fmt.Errorf("watch file interval %s below minimum %s", wf.Interval, minPollInterval)
			}
			cfg.PollInterval = wf.Interval
		}
	}

	return cfg, nil
}

// Validate checks the fields the watcher cannot run without. Called at
// startup; failures are fatal by design.
func (c *Config) Validate() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	if c.DiscordWebhookURL == "" {
		return fmt.Errorf("missing DISCORD_WEBHOOK_URL")
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("no channels to watch: set CHANNELS or WATCH_FILE")
	}
	return nil
}

// Channels parses a comma-separated channel list, lowercasing and dropping
// blanks. Twitch logins are case-insensitive.
func Channels(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func mergeChannels(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, c := range append(append([]string{}, a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
