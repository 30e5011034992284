package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/timed-quiz/internal/question/external"
)

const defaultCacheTTL = 30 * time.Minute

// Cache provides Redis-backed storage of the last good raw batch per query, used
// when the provider keeps rate limiting.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ BatchCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// key ignores the amount so a larger earlier batch can serve a smaller request.
func (c *Cache) key(params external.FetchParams) string {
	return strings.Join([]string{
		"quiz:questions",
		fmt.Sprint(params.Category),
		params.Difficulty,
		params.Type,
	}, ":")
}

func (c *Cache) Load(ctx context.Context, params external.FetchParams) ([]external.OpenTDBQuestion, error) {
	data, err := c.client.Get(ctx, c.key(params)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var batch []external.OpenTDBQuestion
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// Store keeps batch unless a larger one is already cached for the same query.
func (c *Cache) Store(ctx context.Context, params external.FetchParams, batch []external.OpenTDBQuestion) error {
	existing, err := c.Load(ctx, params)
	if err == nil && len(existing) > len(batch) {
		return c.client.Expire(ctx, c.key(params), c.ttl).Err()
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(params), data, c.ttl).Err()
}
