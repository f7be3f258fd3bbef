package watch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/onnwee/stream-herald/notify"
	"github.com/onnwee/stream-herald/telemetry"
)

const defaultMaxConcurrentTicks = 4

// entry pairs a watcher with its in-flight guard. The guard is what makes a
// single channel's successive ticks non-overlapping: a round that finds the
// previous tick still running skips the channel instead of racing it.
type entry struct {
	watcher *Watcher
	busy    atomic.Bool
}

// Manager owns all channel watchers and drives them from one shared ticker.
// Each due channel's tick runs as an independent unit of work in a bounded
// pool, so channels are polled concurrently but one slow channel cannot
// monopolize the process.
type Manager struct {
	api      API
	notifier notify.Notifier
	interval time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry

	ticks chan struct{} // bounded tick pool
	wg    sync.WaitGroup
}

// NewManager creates a manager polling every interval with at most
// maxConcurrent ticks in flight across all channels.
func NewManager(api API, notifier notify.Notifier, interval time.Duration, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTicks
	}
	return &Manager{
		api:      api,
		notifier: notifier,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		entries:  make(map[string]*entry),
		ticks:    make(chan struct{}, maxConcurrent),
	}
}

// WithClock replaces the manager's clock. Tests drive the scheduler with a
// fake clock; production uses the real one.
func (m *Manager) WithClock(c clockwork.Clock) *Manager {
	m.clock = c
	return m
}

// SetChannels reconciles the watched set against logins: new channels get
// fresh watchers (starting offline), removed ones are dropped. Safe to call
// while the manager is running; it backs the watch-file hot reload.
func (m *Manager) SetChannels(logins []string) {
	want := make(map[string]bool, len(logins))
	for _, l := range logins {
		if l != "" {
			want[l] = true
		}
	}

	m.mu.Lock()
	for login := range m.entries {
		if !want[login] {
			delete(m.entries, login)
			slog.Info("stopped watching channel", slog.String("channel", login))
		}
	}
	for login := range want {
		if _, ok := m.entries[login]; !ok {
			m.entries[login] = &entry{watcher: NewWatcher(login, m.api, m.notifier)}
			slog.Info("watching channel", slog.String("channel", login))
		}
	}
	n := len(m.entries)
	m.mu.Unlock()

	if telemetry.WatchedChannels != nil {
		telemetry.WatchedChannels.Set(float64(n))
	}
}

// Run drives the polling loop until ctx is canceled, then waits for in-flight
// ticks to finish. The first round fires immediately so a freshly started
// process reports state without waiting a full interval.
func (m *Manager) Run(ctx context.Context) {
	slog.Info("watch manager started", slog.Duration("interval", m.interval), slog.Int("max_concurrent", cap(m.ticks)))
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			slog.Info("watch manager stopped")
			return
		case <-ticker.Chan():
			m.pollAll(ctx)
		}
	}
}

// pollAll submits one tick per idle channel to the pool. Channels whose
// previous tick is still running are skipped; the next round retries them.
func (m *Manager) pollAll(ctx context.Context) {
	m.mu.Lock()
	due := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		due = append(due, e)
	}
	m.mu.Unlock()

	live := 0
	for _, e := range due {
		if e.watcher.Status().Phase == PhaseLive.String() {
			live++
		}
		if !e.busy.CompareAndSwap(false, true) {
			if telemetry.TicksSkipped != nil {
				telemetry.TicksSkipped.Inc()
			}
			slog.Debug("tick skipped: previous still running", slog.String("channel", e.watcher.Login()))
			continue
		}
		m.wg.Add(1)
		go func(e *entry) {
			defer m.wg.Done()
			defer e.busy.Store(false)
			select {
			case m.ticks <- struct{}{}:
				defer func() { <-m.ticks }()
			case <-ctx.Done():
				return
			}
			m.runTick(ctx, e.watcher)
		}(e)
	}
	if telemetry.LiveChannels != nil {
		telemetry.LiveChannels.Set(float64(live))
	}
}

func (m *Manager) runTick(ctx context.Context, w *Watcher) {
	tickCtx := telemetry.WithCorrelation(ctx, uuid.NewString())
	tickCtx, span := telemetry.StartSpan(tickCtx, "watch", "watch.tick")
	defer span.End()
	telemetry.TimeFunc(telemetry.TickDuration, func() {
		w.Tick(tickCtx)
	})
}

// Status returns a snapshot of every watched channel, sorted by login.
func (m *Manager) Status() []ChannelStatus {
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.entries))
	for _, e := range m.entries {
		watchers = append(watchers, e.watcher)
	}
	m.mu.Unlock()

	out := make([]ChannelStatus, 0, len(watchers))
	for _, w := range watchers {
		out = append(out, w.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out
}
