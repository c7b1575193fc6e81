package push

import (
	"context"
	"errors"
)

// Data keys and platform constants shared verbatim across all target
// platforms so the receiving client can deep-link into the right room.
const (
	DataKeyRoomID      = "chatRoomId"
	DataKeySenderUID   = "senderUid"
	DataKeySenderName  = "senderName"
	DataKeyClickAction = "click_action"

	ClickAction      = "FLUTTER_NOTIFICATION_CLICK"
	AndroidChannelID = "chat_messages_channel"
	WebIcon          = "/icons/Icon-192.png"
)

// ErrTokenNotRegistered classifies a provider response meaning the target
// token is permanently invalid and should be removed from the recipient's
// record. Check with errors.Is.
var ErrTokenNotRegistered = errors.New("push: token not registered")

// Notification is one delivery payload addressed to a single recipient.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
	Link  string // deep link for web targets, e.g. "/chat/{roomID}"
}

// Sender submits one notification to the delivery provider and returns
// the provider's acknowledgment id.
type Sender interface {
	Send(ctx context.Context, n *Notification) (string, error)
}
