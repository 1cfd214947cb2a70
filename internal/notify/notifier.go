// Package notify sends operator notifications to the configured default room.
package notify

import (
	"context"
	"log/slog"
)

// DefaultRoom is used when no room is configured.
const DefaultRoom = "servicecontrol"

// Sender delivers text to a destination on a best-effort basis.
type Sender interface {
	Send(ctx context.Context, destination, text string)
}

// Notifier posts messages to a single room.
type Notifier struct {
	sender Sender
	room   string
}

// New creates a Notifier for room, falling back to DefaultRoom.
func New(sender Sender, room string) *Notifier {
	if room == "" {
		room = DefaultRoom
	}
	return &Notifier{sender: sender, room: room}
}

// Room returns the destination notifications go to.
func (n *Notifier) Room() string { return n.room }

// Notify sends text to the room. Empty text is ignored.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if text == "" {
		return
	}
	slog.Debug("notify: sending", "room", n.room)
	n.sender.Send(ctx, n.room, text)
}
