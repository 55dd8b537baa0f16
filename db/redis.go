// api/db/redis.go
package db

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/docuvault/api/logging"
)

func NewRedisClient() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return client, nil
}

func CloseRedis(client *redis.Client) {
	if client != nil {
		if err := client.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

// RedisStore adapts a go-redis client to the key/value store surface the
// cache subsystem consumes: TTL'd reads and writes, pattern scans, idle-time
// and memory introspection, and background compaction.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return removed, nil
}

// Keys scans the keyspace for keys matching pattern. SCAN is used instead of
// KEYS so large keyspaces do not block the store.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}
	return keys, nil
}

// TTL returns the remaining time to live of a key. A negative duration means
// the key has no expiry (-1s) or does not exist (-2s), matching Redis.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL for key %s: %w", key, err)
	}
	// go-redis leaves the -1 (no expiry) and -2 (missing key) replies
	// unscaled; normalize them to seconds.
	switch ttl {
	case -1:
		return -1 * time.Second, nil
	case -2:
		return -2 * time.Second, nil
	}
	return ttl, nil
}

// IdleTime returns the duration since the key was last accessed.
func (s *RedisStore) IdleTime(ctx context.Context, key string) (time.Duration, error) {
	idle, err := s.client.ObjectIdleTime(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get idle time for key %s: %w", key, err)
	}
	return idle, nil
}

// MemoryInfo reports used and configured maximum memory in bytes. MaxMemory
// is 0 when the store has no configured ceiling.
func (s *RedisStore) MemoryInfo(ctx context.Context) (used int64, max int64, err error) {
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get memory info: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := strings.CutPrefix(line, "maxmemory:"); ok {
			max, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return used, max, nil
}

func (s *RedisStore) KeyCount(ctx context.Context) (int64, error) {
	count, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get key count: %w", err)
	}
	return count, nil
}

// Compact triggers an asynchronous background rewrite on the store.
func (s *RedisStore) Compact(ctx context.Context) error {
	if err := s.client.BgRewriteAOF(ctx).Err(); err != nil {
		return fmt.Errorf("failed to trigger background rewrite: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// RateLimit implements a sliding-window counter over a sorted set, used by
// the admin-surface rate limiting middleware.
func RateLimit(ctx context.Context, client *redis.Client, key string, limit int, per time.Duration) (bool, error) {
	pipe := client.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
