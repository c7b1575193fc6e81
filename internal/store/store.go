package store

import (
	"context"

	"github.com/augustino-massawe/chat-notifier/internal/domain"
)

// Store is the narrow read/repair surface the dispatcher needs from the
// document database. Lookups return (nil, nil) when the document does not
// exist; absence is a branch, not an error.
type Store interface {
	// GetMessage fetches one message by its owning room id and message id.
	GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error)

	// GetUser fetches one user by id.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetRoom fetches one chat room by id.
	GetRoom(ctx context.Context, roomID string) (*domain.ChatRoom, error)

	// ClearUserToken removes only the push token field from a user
	// document. No-op if the user or the field is already gone.
	ClearUserToken(ctx context.Context, userID string) error

	Close(ctx context.Context) error
}
