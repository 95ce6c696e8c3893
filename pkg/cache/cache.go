package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig holds connection settings for the memoization cache.
type RedisConfig struct {
	Addresses    []string
	Password     string
	Database     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisCache memoizes expensive store aggregates for a short TTL. Every
// failure path degrades to a cache miss so callers always fall through to
// the store; the cache is an optimization, never a dependency.
type RedisCache struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

// NewRedisCache connects to Redis. A connection failure is reported but the
// returned cache is still usable (it just misses on every read).
func NewRedisCache(config RedisConfig, logger *logrus.Logger) *RedisCache {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        config.Addresses,
		Password:     config.Password,
		DB:           config.Database,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, aggregate memoization disabled")
	} else {
		logger.WithField("addresses", config.Addresses).Info("Connected to Redis")
	}

	return &RedisCache{client: client, logger: logger}
}

// Disabled returns a cache that always misses, for deployments without Redis.
func Disabled(logger *logrus.Logger) *RedisCache {
	return &RedisCache{logger: logger}
}

// GetFloat reads a memoized float value. Any error counts as a miss.
func (c *RedisCache) GetFloat(ctx context.Context, key string) (float64, bool) {
	if c.client == nil {
		return 0, false
	}

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Debug("Cache read failed")
		}
		return 0, false
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// SetFloat memoizes a float value with the given TTL, best-effort.
func (c *RedisCache) SetFloat(ctx context.Context, key string, value float64, ttl time.Duration) {
	if c.client == nil {
		return
	}

	if err := c.client.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64), ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Cache write failed")
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
