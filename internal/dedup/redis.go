package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/augustino-massawe/chat-notifier/internal/config"
	"github.com/augustino-massawe/chat-notifier/pkg/log"
)

const opTimeout = 2 * time.Second

// RedisGuard marks dispatched (room, message) pairs in redis with a TTL.
// SetNX makes the mark-and-check atomic across notifier instances.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(cfg config.RedisConfig) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisGuard{
		client: client,
		prefix: cfg.SeenPrefix,
		ttl:    cfg.SeenTTL,
	}, nil
}

// keyFor builds the seen-marker key: {prefix}:room:{roomID}:msg:{messageID}
func (g *RedisGuard) keyFor(roomID, messageID string) string {
	return fmt.Sprintf("%s:room:%s:msg:%s", g.prefix, roomID, messageID)
}

// FirstDelivery fails open: when redis is unreachable the dispatch
// proceeds and a redelivered event may produce a duplicate push, which
// is acceptable.
func (g *RedisGuard) FirstDelivery(ctx context.Context, roomID, messageID string) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	first, err := g.client.SetNX(ctx, g.keyFor(roomID, messageID), 1, g.ttl).Result()
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, messageID).
			Msg("dedup check failed, proceeding")
		return true
	}
	return first
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
