package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/go-paginator/pkg/paginator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisListSource pages through a Redis list of JSON documents.
type RedisListSource[T any] struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisListSource creates a page source over the list stored at key.
func NewRedisListSource[T any](redisClient *redis.Client, key string) *RedisListSource[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisListSource[T]{
		redis:  redisClient,
		key:    key,
		logger: log.With().Str("component", "redis-source").Str("key", key).Logger(),
	}
}

// FetchPage implements paginator.Source. Page N covers list indexes
// (N-1)*pageSize through N*pageSize-1; the total is the list length.
func (s *RedisListSource[T]) FetchPage(ctx context.Context, page, pageSize int) (paginator.Page[T], error) {
	label := "redis:" + s.key
	startTime := time.Now()
	defer func() {
		sourceRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	start := int64(page-1) * int64(pageSize)
	stop := start + int64(pageSize) - 1

	// Read the range and the length in one round trip
	pipe := s.redis.Pipeline()
	rangeCmd := pipe.LRange(ctx, s.key, start, stop)
	lenCmd := pipe.LLen(ctx, s.key)
	if _, err := pipe.Exec(ctx); err != nil {
		sourceErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		sourceRequestsTotal.WithLabelValues(label, "error").Inc()
		s.logger.Error().Err(err).Int("page", page).Msg("Redis page read failed")
		return paginator.Page[T]{}, &SourceError{
			ErrorClass: ErrorClassNetwork,
			Message:    "redis pipeline",
			Err:        err,
		}
	}
	sourceRequestsTotal.WithLabelValues(label, "ok").Inc()

	members := rangeCmd.Val()
	items := make([]T, 0, len(members))
	for i, member := range members {
		var item T
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			return paginator.Page[T]{}, fmt.Errorf("%w: index %d: %v", ErrDecode, start+int64(i), err)
		}
		items = append(items, item)
	}

	s.logger.Debug().
		Int("page", page).
		Int("elements", len(items)).
		Int64("total", lenCmd.Val()).
		Msg("Page read")

	return paginator.Page[T]{Items: items, Total: int(lenCmd.Val())}, nil
}

// Append pushes items onto the end of the list as JSON documents.
func (s *RedisListSource[T]) Append(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		values = append(values, data)
	}

	if err := s.redis.RPush(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}
