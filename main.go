// Command stream-herald watches a set of Twitch channels and posts lifecycle
// notifications (went live, game changed, stream ended) to a Discord webhook.
// It:
//   - Loads configuration and initializes structured logging.
//   - Verifies the Twitch credentials up front (bad credentials are fatal).
//   - Starts the watch manager: one state machine per channel, polled on a
//     shared interval with bounded concurrency.
//   - Optionally hot-reloads the channel list from a YAML watch file.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/stream-herald/config"
	"github.com/onnwee/stream-herald/notify"
	"github.com/onnwee/stream-herald/server"
	"github.com/onnwee/stream-herald/telemetry"
	"github.com/onnwee/stream-herald/twitchapi"
	"github.com/onnwee/stream-herald/watch"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	shutdownTracing, err := telemetry.InitTracing("stream-herald", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Credential preflight. A rejected client id/secret can only get worse
	// with retries, so it aborts startup rather than poisoning every poll.
	ts := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	preflightCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tok, err := ts.Get(preflightCtx)
	cancel()
	switch {
	case err == nil:
		if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
	case twitchapi.IsAuthError(err):
		slog.Error("twitch rejected credentials", slog.Any("err", err))
		os.Exit(1)
	default:
		// Transient startup trouble (API down, DNS): keep going, the watcher
		// retries every poll anyway.
		slog.Warn("twitch app token fetch failed; continuing", slog.Any("err", err))
	}

	client := twitchapi.NewClient(ts, cfg.TwitchClientID, cfg.HelixRPS, cfg.MaxConcurrentThumbnails)
	webhook := notify.NewDiscordWebhook(cfg.DiscordWebhookURL)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := watch.NewManager(client, webhook, cfg.PollInterval, cfg.MaxConcurrentTicks)
	mgr.SetChannels(cfg.Channels)
	slog.Info("starting watchers", slog.Int("channel_count", len(cfg.Channels)), slog.Any("channels", cfg.Channels))
	go mgr.Run(ctx)

	// Watch-file hot reload: edits to the YAML list add/remove watchers
	// without a restart. Env-configured channels stay watched regardless.
	if cfg.WatchFile != "" {
		envChannels := config.Channels(os.Getenv("CHANNELS"))
		go func() {
			err := config.WatchReload(ctx, cfg.WatchFile, func(fromFile []string) {
				mgr.SetChannels(append(append([]string{}, envChannels...), fromFile...))
			})
			if err != nil {
				slog.Error("watch file reload loop exited", slog.Any("err", err))
			}
		}()
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// Ops server (health/readiness/status/metrics)
	ready := func(rctx context.Context) error {
		_, err := ts.Get(rctx)
		return err
	}
	go func() {
		if err := server.Start(ctx, mgr, ready, cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
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
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
