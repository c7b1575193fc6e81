package domain

import "time"

// Message is a single chat message inside a room. The dispatcher only
// reads messages; it never mutates or deletes them.
type Message struct {
	ID         string    `bson:"_id" json:"id"`
	ChatRoomID string    `bson:"chatRoomId" json:"chat_room_id"`
	SenderID   string    `bson:"senderId" json:"sender_id"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"created_at"`
}

// ChatRoom groups a fixed set of participant user ids.
type ChatRoom struct {
	ID           string   `bson:"_id" json:"id"`
	Participants []string `bson:"participants" json:"participants"`
}

// User is an account. FCMToken is the only field the dispatcher ever
// writes, and only to remove it after the provider reports it dead.
type User struct {
	ID          string `bson:"_id" json:"id"`
	DisplayName string `bson:"displayName,omitempty" json:"display_name,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	FCMToken    string `bson:"fcmToken,omitempty" json:"-"`
}

// BestName resolves the name shown as the notification title:
// display name, then email, then a fixed placeholder. Always non-empty.
// A nil user resolves to the placeholder as well.
func (u *User) BestName() string {
	if u == nil {
		return FallbackSenderName
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return FallbackSenderName
}

// FallbackSenderName is used when a sender has no usable identity.
const FallbackSenderName = "Someone"
