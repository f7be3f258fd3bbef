// Package watch drives the per-channel stream lifecycle: a scheduler ticks
// each watched channel on a fixed interval, each tick polls the Twitch API,
// reconciles the result against the channel's remembered state, and emits
// notifications on detected transitions.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/stream-herald/notify"
	"github.com/onnwee/stream-herald/telemetry"
	"github.com/onnwee/stream-herald/twitchapi"
)

// API is the slice of the Twitch client the watcher needs. Kept narrow so
// tests can script poll results.
type API interface {
	GetStreamByLogin(ctx context.Context, login string) (*twitchapi.Stream, error)
	GetGame(ctx context.Context, gameID string) (*twitchapi.Game, error)
	GetThumbnail(ctx context.Context, s *twitchapi.Stream, width, height int) ([]byte, error)
}

// Phase is a channel's lifecycle phase.
type Phase int

const (
	PhaseOffline Phase = iota
	PhaseLive
)

func (p Phase) String() string {
	if p == PhaseLive {
		return "live"
	}
	return "offline"
}

// unknownGame stands in when the category cannot be resolved; a failed lookup
// must never abort a transition.
const unknownGame = "Unknown"

// Watcher owns one channel's watch state. State is mutated only from Tick,
// and the scheduler guarantees ticks for one channel never overlap; the mutex
// exists solely so the ops server can take consistent snapshots. It is never
// held across network calls, so a slow transition cannot stall snapshots or
// the scheduling loop.
type Watcher struct {
	login    string
	api      API
	notifier notify.Notifier

	// now is the watcher's clock; replaced in tests.
	now func() time.Time

	mu            sync.Mutex
	phase         Phase
	lastStream    *twitchapi.Stream
	lastStartedAt time.Time
	lastGameID    string
	lastGameName  string
	lastChecked   time.Time
}

// NewWatcher creates a watcher for one channel login, starting offline.
func NewWatcher(login string, api API, notifier notify.Notifier) *Watcher {
	return &Watcher{
		login:    login,
		api:      api,
		notifier: notifier,
		now:      time.Now,
	}
}

// Login returns the watched channel's login name.
func (w *Watcher) Login() string { return w.login }

// ChannelStatus is a point-in-time view of one channel for the ops surface.
type ChannelStatus struct {
	Login       string    `json:"login"`
	Phase       string    `json:"phase"`
	Title       string    `json:"title,omitempty"`
	Game        string    `json:"game,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	LastChecked time.Time `json:"last_checked,omitzero"`
}

// Status returns a snapshot of the channel's current state.
func (w *Watcher) Status() ChannelStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := ChannelStatus{
		Login:       w.login,
		Phase:       w.phase.String(),
		StartedAt:   w.lastStartedAt,
		LastChecked: w.lastChecked,
	}
	if w.lastStream != nil {
		st.Title = w.lastStream.Title
		st.Game = w.lastGameName
	}
	return st
}

// Tick executes one poll-and-reconcile pass. Poll failures are logged and
// swallowed here: a single failed poll must never be read as "went offline",
// and one channel's trouble must never reach the scheduler.
func (w *Watcher) Tick(ctx context.Context) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("channel", w.login))

	if telemetry.PollsTotal != nil {
		telemetry.PollsTotal.Inc()
	}
	s, err := w.api.GetStreamByLogin(ctx, w.login)
	if err != nil {
		if telemetry.PollFailures != nil {
			telemetry.PollFailures.Inc()
		}
		telemetry.RecordError(trace.SpanFromContext(ctx), err)
		switch {
		case twitchapi.IsAuthError(err):
			if telemetry.AuthFailures != nil {
				telemetry.AuthFailures.Inc()
			}
			log.Error("poll rejected: check credentials", slog.Any("err", err))
		case twitchapi.IsTransient(err):
			log.Warn("poll failed; keeping state", slog.Any("err", err))
		default:
			log.Error("poll failed with non-retryable error; keeping state", slog.Any("err", err))
		}
		return
	}
	// Reruns carry a non-live type; for lifecycle purposes they are offline.
	if s != nil && !s.Live() {
		log.Debug("ignoring non-live stream", slog.String("type", s.Type))
		s = nil
	}

	// Snapshot remembered state under the lock, then run the transition's
	// network calls without it. Ticks for one channel never overlap, so the
	// decision cannot go stale between snapshot and commit.
	w.mu.Lock()
	w.lastChecked = w.now()
	phase := w.phase
	prevStartedAt := w.lastStartedAt
	prevGameID := w.lastGameID
	w.mu.Unlock()

	switch {
	case s == nil && phase == PhaseLive:
		w.endSession(ctx, log)

	case s != nil && phase == PhaseOffline:
		w.startSession(ctx, log, s)

	case s != nil && phase == PhaseLive:
		if !s.StartedAt.Equal(prevStartedAt) {
			// A new broadcast began before the previous one was observed as
			// ended: the stream flickered within one polling interval. Close
			// out the old session from remembered data, then open the new one.
			log.Info("start timestamp changed; stream restarted within one interval",
				slog.Time("old", prevStartedAt), slog.Time("new", s.StartedAt))
			w.endSession(ctx, log)
			w.startSession(ctx, log, s)
		} else if s.GameID != prevGameID {
			w.changeGame(ctx, log, s)
		}
		// Same session, same game: nothing to do.
	}
}

// startSession transitions to LIVE and emits the went-live notification.
// Metadata lookups are best-effort: a missing game name or thumbnail degrades
// the notification, it never suppresses it.
func (w *Watcher) startSession(ctx context.Context, log *slog.Logger, s *twitchapi.Stream) {
	gameName := w.resolveGame(ctx, log, s.GameID)

	var thumb []byte
	img, err := w.api.GetThumbnail(ctx, s, 0, 0)
	if err != nil {
		if telemetry.ThumbnailFailures != nil {
			telemetry.ThumbnailFailures.Inc()
		}
		log.Warn("thumbnail fetch failed; sending without preview", slog.Any("err", err))
	} else {
		thumb = img
	}

	w.post(ctx, log, eventWentLive, wentLiveMessage(w.login, s.Title, gameName, thumb))

	w.mu.Lock()
	w.phase = PhaseLive
	w.lastStream = s
	w.lastStartedAt = s.StartedAt
	w.lastGameID = s.GameID
	w.lastGameName = gameName
	w.mu.Unlock()
	log.Info("channel went live", slog.String("title", s.Title), slog.String("game", gameName), slog.Time("started_at", s.StartedAt))
}

// endSession transitions to OFFLINE and emits the ended notification from
// remembered data, then clears it.
func (w *Watcher) endSession(ctx context.Context, log *slog.Logger) {
	w.mu.Lock()
	duration := w.now().Sub(w.lastStartedAt)
	title := ""
	if w.lastStream != nil {
		title = w.lastStream.Title
	}
	game := w.lastGameName
	w.phase = PhaseOffline
	w.lastStream = nil
	w.lastStartedAt = time.Time{}
	w.lastGameID = ""
	w.lastGameName = ""
	w.mu.Unlock()

	w.post(ctx, log, eventEnded, endedMessage(w.login, title, game, duration))
	log.Info("channel went offline", slog.Duration("session", duration), slog.String("game", game))
}

// changeGame emits the category-switch notification and updates the
// remembered game while staying LIVE.
func (w *Watcher) changeGame(ctx context.Context, log *slog.Logger, s *twitchapi.Stream) {
	w.mu.Lock()
	oldName := w.lastGameName
	w.mu.Unlock()
	newName := w.resolveGame(ctx, log, s.GameID)

	w.post(ctx, log, eventGameChanged, gameChangedMessage(w.login, s.Title, oldName, newName))

	w.mu.Lock()
	w.lastStream = s
	w.lastGameID = s.GameID
	w.lastGameName = newName
	w.mu.Unlock()
	log.Info("game changed", slog.String("from", oldName), slog.String("to", newName))
}

// resolveGame looks up a category name, degrading to a placeholder on any
// miss or failure.
func (w *Watcher) resolveGame(ctx context.Context, log *slog.Logger, gameID string) string {
	if gameID == "" {
		return unknownGame
	}
	g, err := w.api.GetGame(ctx, gameID)
	if err != nil {
		log.Warn("game lookup failed; using placeholder", slog.String("game_id", gameID), slog.Any("err", err))
		return unknownGame
	}
	if g == nil {
		return unknownGame
	}
	return g.Name
}

// post makes the single delivery attempt for an event. Failures are logged
// and counted; the transition stands regardless.
func (w *Watcher) post(ctx context.Context, log *slog.Logger, kind string, m notify.Message) {
	err := w.notifier.Post(ctx, m)
	telemetry.CountNotification(kind, err)
	if err != nil {
		log.Error("notification delivery failed", slog.String("kind", kind), slog.Any("err", err))
	}
}
