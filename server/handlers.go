package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/stream-herald/telemetry"
	"github.com/onnwee/stream-herald/watch"
)

// ReadyCheck verifies an external precondition (API credentials usable).
// A nil check is treated as always ready.
type ReadyCheck func(ctx context.Context) error

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	mgr   *watch.Manager
	ready ReadyCheck
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(mgr *watch.Manager, ready ReadyCheck) *Handlers {
	return &Handlers{mgr: mgr, ready: ready}
}

// HandleHealthz responds to liveness probes. The process being up and able to
// serve is the whole check; upstream API trouble is a readiness concern.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes: channels are configured and the
// Twitch credentials still work.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"channels", func() error {
			if len(h.mgr.Status()) == 0 {
				return errNoChannels
			}
			return nil
		}},
		{"credentials", func() error {
			if h.ready == nil {
				return nil
			}
			return h.ready(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns the per-channel lifecycle snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"channels": h.mgr.Status(),
	}); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("failed to encode status", slog.Any("err", err))
	}
}

var errNoChannels = errors.New("no channels configured")
