// Package notify delivers structured notifications to a messaging
// destination. The watcher only depends on the Notifier contract:
// fire-and-forget submission with at most one delivery attempt per event.
package notify

import "context"

// Message is one outbound notification. Image, when set, is attached inline
// and referenced by the embed.
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Image       []byte
	ImageName   string
}

// Field is a short labeled value rendered inside the message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notifier posts a message to the configured destination. Implementations
// must be safe for concurrent use; delivery failures are returned, not
// retried internally.
type Notifier interface {
	Post(ctx context.Context, m Message) error
}
