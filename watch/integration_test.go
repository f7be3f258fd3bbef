package watch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/stream-herald/notify"
	"github.com/onnwee/stream-herald/testutil"
	"github.com/onnwee/stream-herald/twitchapi"
)

// Exercises the real client and webhook against mock endpoints: token fetch,
// stream poll, game lookup, thumbnail download, and both notification shapes.
func TestWatcherEndToEnd(t *testing.T) {
	startedAt := time.Now().Add(-90 * time.Minute).UTC().Truncate(time.Second)
	thumb := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3, 4}

	api := testutil.NewMockTwitchServer(t)
	api.MockOAuthTokenResponse("e2e-token", 3600)
	api.MockStreamsResponse([]map[string]interface{}{{
		"id":            "42",
		"user_login":    "somechannel",
		"game_id":       "509658",
		"title":         "chatting all morning",
		"type":          "live",
		"thumbnail_url": "https://static-cdn.example/prev-{width}x{height}.jpg",
		"started_at":    startedAt.Format(time.RFC3339),
	}})
	api.MockGamesResponse([]map[string]string{{"id": "509658", "name": "Just Chatting"}})
	api.MockThumbnail("/prev-1920x1080.jpg", thumb)

	ts := &twitchapi.TokenSource{
		ClientID:     "e2e-client-id",
		ClientSecret: "e2e-secret",
		HTTPClient:   testutil.RewriteClient(api.URL),
	}
	client := twitchapi.NewClient(ts, "e2e-client-id", 0, 2)
	client.HTTPClient = testutil.RewriteClient(api.URL)

	hook := testutil.NewWebhookRecorder(t, 0)
	w := NewWatcher("somechannel", client, notify.NewDiscordWebhook(hook.URL))

	w.Tick(context.Background())

	bodies, types := hook.Deliveries()
	if len(bodies) != 1 {
		t.Fatalf("deliveries after going live = %d, want 1", len(bodies))
	}
	if !strings.HasPrefix(types[0], "multipart/form-data") {
		t.Errorf("content type = %q, want multipart upload carrying the preview", types[0])
	}
	live := string(bodies[0])
	for _, want := range []string{"somechannel is live!", "chatting all morning", "Just Chatting", "attachment://somechannel.jpg"} {
		if !strings.Contains(live, want) {
			t.Errorf("went-live payload missing %q", want)
		}
	}

	if st := w.Status(); st.Phase != "live" || !st.StartedAt.Equal(startedAt) {
		t.Fatalf("status after going live = %+v", st)
	}

	// Channel drops offline; the ended notification is built from remembered
	// session data.
	api.MockStreamsResponse([]map[string]interface{}{})
	w.Tick(context.Background())

	bodies, types = hook.Deliveries()
	if len(bodies) != 2 {
		t.Fatalf("deliveries after going offline = %d, want 2", len(bodies))
	}
	if types[1] != "application/json" {
		t.Errorf("ended content type = %q, want plain json", types[1])
	}
	ended := string(bodies[1])
	for _, want := range []string{"somechannel went offline", "Just Chatting", "1h 30m"} {
		if !strings.Contains(ended, want) {
			t.Errorf("ended payload missing %q", want)
		}
	}

	if st := w.Status(); st.Phase != "offline" || !st.StartedAt.IsZero() {
		t.Fatalf("status after going offline = %+v", st)
	}
}
