package dedup

import "context"

// Guard suppresses duplicate dispatches when the event source redelivers
// a message-created event. It is strictly best-effort: a guard failure
// must never block a dispatch, only allow a duplicate push.
type Guard interface {
	// FirstDelivery reports whether this (room, message) pair has not
	// been dispatched yet, marking it as seen in the same call.
	FirstDelivery(ctx context.Context, roomID, messageID string) bool
	Close() error
}

// Nop is a Guard that treats every delivery as the first one.
type Nop struct{}

func (Nop) FirstDelivery(context.Context, string, string) bool { return true }
func (Nop) Close() error                                       { return nil }
