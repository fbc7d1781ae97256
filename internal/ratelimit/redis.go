package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "gateway:ratelimit:"
	redisTimeout   = 250 * time.Millisecond
)

// Redis is a fixed-window counter shared by every gateway replica.
// Redis failures admit the request.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewRedis(ctx context.Context, redisURL string, log *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping rate limit redis: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: client, log: log.With("component", "rate_limiter"), now: time.Now}, nil
}

func (r *Redis) Allow(ctx context.Context, key string, limit int) Decision {
	if limit <= 0 {
		return unlimited()
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	now := r.now()
	windowStart := now.Truncate(Window)
	redisKey := redisKeyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, Window+time.Second)
		return nil
	})
	if err != nil {
		r.log.Error("rate_limit_redis_error", "error", err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: windowStart.Add(Window)}
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(Window),
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Limiter = (*Redis)(nil)
