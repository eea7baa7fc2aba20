package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func conversationKey(userID string) string {
	return fmt.Sprintf("conversation:%s:messages", userID)
}

func (r *RedisConversationRepository) AddMessage(ctx context.Context, userID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := conversationKey(userID)

	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	// extend TTL on touch
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// LoadHistory returns the trailing limit messages in insertion order.
func (r *RedisConversationRepository) LoadHistory(ctx context.Context, userID string, limit int) (*model.ConversationHistory, error) {
	key := conversationKey(userID)

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	rows, err := r.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.ConversationHistory{UserID: userID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Warn().Err(err).Str("user_id", userID).Int("index", i).Msg("skipping malformed message")
			continue
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{UserID: userID, Messages: msgs}, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, userID string) error {
	key := conversationKey(userID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, userID string) (int, error) {
	key := conversationKey(userID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
