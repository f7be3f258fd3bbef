package watch

import (
	"fmt"
	"time"

	"github.com/onnwee/stream-herald/notify"
)

// Event kinds, used as metric labels and log attributes.
const (
	eventWentLive    = "went_live"
	eventEnded       = "ended"
	eventGameChanged = "game_changed"
)

// Embed colors per event kind.
const (
	colorLive        = 0x2ECC71 // green
	colorEnded       = 0x95A5A6 // grey
	colorGameChanged = 0x3498DB // blue
)

func wentLiveMessage(login, title, game string, thumbnail []byte) notify.Message {
	m := notify.Message{
		Title:       fmt.Sprintf("%s is live!", login),
		Description: title,
		Color:       colorLive,
		Fields: []notify.Field{
			{Name: "Game", Value: game, Inline: true},
		},
	}
	if len(thumbnail) > 0 {
		m.Image = thumbnail
		m.ImageName = login + ".jpg"
	}
	return m
}

func endedMessage(login, title, game string, duration time.Duration) notify.Message {
	return notify.Message{
		Title:       fmt.Sprintf("%s went offline", login),
		Description: title,
		Color:       colorEnded,
		Fields: []notify.Field{
			{Name: "Game", Value: game, Inline: true},
			{Name: "Duration", Value: formatDuration(duration), Inline: true},
		},
	}
}

func gameChangedMessage(login, title, oldGame, newGame string) notify.Message {
	return notify.Message{
		Title:       fmt.Sprintf("%s switched game", login),
		Description: title,
		Color:       colorGameChanged,
		Fields: []notify.Field{
			{Name: "Game", Value: fmt.Sprintf("%s → %s", oldGame, newGame)},
		},
	}
}

// formatDuration renders a session length as "3h 24m" (or "14m" under an
// hour). Seconds are noise at stream timescales.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
