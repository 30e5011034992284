package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/timed-quiz/internal/quiz"
)

// RedisStore keeps finalized sessions in Redis with a TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "result_store").Logger(),
	}
}

func resultKey(id string) string {
	return fmt.Sprintf("quiz:result:%s", id)
}

func (s *RedisStore) Put(ctx context.Context, id string, result quiz.FinalizedSession) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.redis.Set(ctx, resultKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*quiz.FinalizedSession, error) {
	data, err := s.redis.Get(ctx, resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	var result quiz.FinalizedSession
	if err := json.Unmarshal(data, &result); err != nil {
		// Unreadable entries count as absent.
		s.logger.Warn().Err(err).Str("session_id", id).Msg("discard unreadable result")
		return nil, nil
	}
	return &result, nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, resultKey(id)).Err(); err != nil {
		return fmt.Errorf("clear result: %w", err)
	}
	return nil
}
