package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisStore keeps the sliding windows in Redis sorted sets, one key per
// identity, scored by request time. Multiple netopsd instances sharing the
// store enforce one combined limit per identity.
//
// On Redis errors the store fails open: the request is admitted and the error
// is logged, so a broken cache cannot take the API down with it.
type RedisStore struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger

	now func() time.Time
}

// Purge, count and conditional append run server-side in one script so
// concurrent instances cannot interleave between the count and the add.
// Members carry a random suffix; the score alone would collapse two
// admissions landing on the same nanosecond into one entry.
//
// Returns {1, count} on admission, {0, count, oldestScore} on rejection.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[5])
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
	return {1, count}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {0, count, oldest[2]}
`)

// NewRedisStore connects to redisURL (redis://host:port[/db]) and verifies
// the connection before returning.
func NewRedisStore(redisURL string, limit int, window time.Duration, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client; used in tests.
func NewRedisStoreWithClient(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, limit: limit, window: window, logger: logger, now: time.Now}
}

func (s *RedisStore) key(identity string) string {
	return "ratelimit:" + identity
}

// Allow evaluates the window for identity. The request is recorded only when
// admitted, so rejected requests do not consume quota.
func (s *RedisStore) Allow(ctx context.Context, identity string) (Decision, error) {
	now := s.now()
	key := s.key(identity)
	cutoff := now.Add(-s.window)
	member := formatScore(now) + ":" + uuid.NewString()

	res, err := allowScript.Run(ctx, s.client, []string{key},
		formatScore(cutoff),
		formatScore(now),
		s.limit,
		strconv.FormatInt((2 * s.window).Milliseconds(), 10),
		member,
	).Result()
	if err != nil {
		return s.failOpen(identity, err), nil
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return s.failOpen(identity, fmt.Errorf("unexpected script reply %T", res)), nil
	}
	allowed, _ := vals[0].(int64)
	count64, _ := vals[1].(int64)
	count := int(count64)

	if allowed == 0 {
		retry := s.window
		if len(vals) > 2 {
			if raw, ok := vals[2].(string); ok {
				if score, err := strconv.ParseFloat(raw, 64); err == nil {
					retry = time.Unix(0, int64(score)).Add(s.window).Sub(now)
					if retry < 0 {
						retry = 0
					}
				}
			}
		}
		return Decision{Allowed: false, Limit: s.limit, Remaining: 0, RetryAfter: retry}, nil
	}

	return Decision{
		Allowed:    true,
		Limit:      s.limit,
		Remaining:  s.limit - count - 1,
		RetryAfter: s.window,
	}, nil
}

func (s *RedisStore) failOpen(identity string, err error) Decision {
	if s.logger != nil {
		s.logger.Warn("redis rate limit check failed, admitting request",
			slog.String("identity", identity),
			slog.String("error", err.Error()))
	}
	return Decision{Allowed: true, Limit: s.limit, Remaining: s.limit - 1, RetryAfter: s.window}
}

// Flush removes all recorded requests for an identity.
func (s *RedisStore) Flush(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("flush rate limit window: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
