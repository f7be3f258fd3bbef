// Package telemetry provides Prometheus metrics and correlation-id aware
// logging helpers for the watcher pipeline.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollsTotal          prometheus.Counter
	PollFailures        prometheus.Counter
	AuthFailures        prometheus.Counter
	TicksSkipped        prometheus.Counter
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	ThumbnailFailures   prometheus.Counter

	// Histograms (seconds)
	TickDuration prometheus.Observer

	// Gauges
	LiveChannels    prometheus.Gauge
	WatchedChannels prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_polls_total", Help: "Number of stream status polls performed"})
		PollFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_failures_total", Help: "Number of polls that failed (transport or API error)"})
		AuthFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_auth_failures_total", Help: "Number of API calls rejected for bad credentials"})
		TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_ticks_skipped_total", Help: "Number of scheduled ticks skipped because the previous tick was still running"})
		NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_notifications_sent_total", Help: "Number of notifications delivered, by event kind"}, []string{"kind"})
		NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "herald_notifications_failed_total", Help: "Number of notification deliveries that failed, by event kind"}, []string{"kind"})
		ThumbnailFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_thumbnail_failures_total", Help: "Number of thumbnail downloads that failed"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_tick_duration_seconds", Help: "Watcher tick duration seconds", Buckets: prometheus.DefBuckets})
		LiveChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_live_channels", Help: "Number of watched channels currently live"})
		WatchedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_watched_channels", Help: "Number of channels being watched"})
	})
}

// CountNotification records one delivery attempt outcome for an event kind.
func CountNotification(kind string, err error) {
	if NotificationsSent == nil {
		return
	}
	if err != nil {
		NotificationsFailed.WithLabelValues(kind).Inc()
		return
	}
	NotificationsSent.WithLabelValues(kind).Inc()
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
