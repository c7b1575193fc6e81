package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/augustino-massawe/chat-notifier/internal/config"
	"github.com/augustino-massawe/chat-notifier/internal/domain"
)

const (
	collUsers    = "users"
	collRooms    = "chatRooms"
	collMessages = "messages"

	fieldFCMToken = "fcmToken"
)

// MongoStore implements Store on a MongoDB database holding the chat
// documents (users, chatRooms, messages collections).
type MongoStore struct {
	client    *mongo.Client
	db        *mongo.Database
	opTimeout time.Duration
}

func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{
		client:    client,
		db:        client.Database(cfg.Database),
		opTimeout: cfg.OpTimeout,
	}, nil
}

func (s *MongoStore) GetMessage(ctx context.Context, roomID, messageID string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var msg domain.Message
	err := s.db.Collection(collMessages).
		FindOne(ctx, bson.M{"_id": messageID, "chatRoomId": roomID}).
		Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s/%s: %w", roomID, messageID, err)
	}
	return &msg, nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var user domain.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return &user, nil
}

func (s *MongoStore) GetRoom(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var room domain.ChatRoom
	err := s.db.Collection(collRooms).FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat room %s: %w", roomID, err)
	}
	return &room, nil
}

// ClearUserToken unsets the token field only. The rest of the user
// document is untouched, and a missing user matches zero documents.
func (s *MongoStore) ClearUserToken(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$unset": bson.M{fieldFCMToken: ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear token for user %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
