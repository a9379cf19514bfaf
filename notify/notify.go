// Package notify delivers post events to interested parties.
package notify

import (
	"context"

	"devconnector/models"
)

// Notifier receives every post event. Implementations must not block the
// caller for long.
type Notifier interface {
	Notify(ctx context.Context, ev models.PostEvent)
}

// Multi forwards an event to each notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev models.PostEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, models.PostEvent) {}
