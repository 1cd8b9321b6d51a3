package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"animerec/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix = "animerec:quota:"
	window    = time.Minute
)

// RedisLimiter counts searches per client in fixed one-minute windows so
// several replicas share the same quota.
type RedisLimiter struct {
	client *redis.Client
	perMin int
	logger *logrus.Logger
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, perMinute int, logger *logrus.Logger) *RedisLimiter {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisLimiter{
		client: client,
		perMin: perMinute,
		logger: logger,
		now:    time.Now,
	}
}

// Allow fails open: when Redis is unreachable the search goes through and
// the error is returned for logging.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := r.windowKey(key)

	count, err := r.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return true, fmt.Errorf("failed to increment quota counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, windowKey, window).Err(); err != nil {
			r.logger.WithError(err).WithField("key", windowKey).Warn("Failed to set quota expiry")
		}
	}

	return count <= int64(r.perMin), nil
}

func (r *RedisLimiter) windowKey(key string) string {
	return keyPrefix + key + ":" + strconv.FormatInt(r.now().Unix()/int64(window.Seconds()), 10)
}

// NewRedisClient connects to the configured Redis and verifies it answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
