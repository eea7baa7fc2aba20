package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
)

// RedisQuizProgressStore keeps one JSON document per user with the same
// TTL as the conversation.
type RedisQuizProgressStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisQuizProgressStore(rdb redis.Cmdable, ttl time.Duration) *RedisQuizProgressStore {
	return &RedisQuizProgressStore{rdb: rdb, ttl: ttl}
}

func quizKey(userID string) string {
	return fmt.Sprintf("quiz:%s:progress", userID)
}

// LoadQuizProgress returns errx.ErrNotFound when the user has no quiz in
// progress.
func (s *RedisQuizProgressStore) LoadQuizProgress(ctx context.Context, userID string) (*model.QuizProgress, error) {
	raw, err := s.rdb.Get(ctx, quizKey(userID)).Bytes()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	var p model.QuizProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode quiz progress: %w", err)
	}
	return &p, nil
}

func (s *RedisQuizProgressStore) SaveQuizProgress(ctx context.Context, userID string, progress model.QuizProgress) error {
	b, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode quiz progress: %w", err)
	}
	return errx.WrapRedis(s.rdb.Set(ctx, quizKey(userID), b, s.ttl).Err())
}

func (s *RedisQuizProgressStore) ClearQuizProgress(ctx context.Context, userID string) error {
	return errx.WrapRedis(s.rdb.Del(ctx, quizKey(userID)).Err())
}

var _ model.QuizProgressStore = (*RedisQuizProgressStore)(nil)
