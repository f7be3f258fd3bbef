package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register and panic
	if PollsTotal == nil || NotificationsSent == nil || TickDuration == nil {
		t.Fatal("Init did not register metrics")
	}
}

func TestCountNotification(t *testing.T) {
	Init()
	// Both paths must not panic; exact counter values are shared process-wide.
	CountNotification("went_live", nil)
	CountNotification("went_live", context.DeadlineExceeded)
}

func TestTimeFunc(t *testing.T) {
	Init()
	d := TimeFunc(TickDuration, func() { time.Sleep(10 * time.Millisecond) })
	if d < 10*time.Millisecond {
		t.Errorf("measured %v, want >= 10ms", d)
	}
	// nil observer is allowed
	if d := TimeFunc(nil, func() {}); d < 0 {
		t.Errorf("duration = %v", d)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation on empty ctx = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if l := LoggerWithCorr(ctx); l == nil {
		t.Fatal("LoggerWithCorr returned nil")
	}
}
