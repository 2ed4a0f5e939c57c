package ratelimit

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
)

// DefaultRedisPrefix namespaces marker keys in a shared Redis.
const DefaultRedisPrefix = "ecogest:ratelimit:"

// RedisConfig configures a Redis marker set.
type RedisConfig struct {
	URL    string // redis://[user:password@]host:port/db
	Prefix string // Key prefix; empty means DefaultRedisPrefix
}

// Redis keeps markers in Redis so that every gateway replica sees them.
// Each marker is a key holding the deadline in Unix milliseconds, expiring
// with it.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at cfg.URL and checks it answers.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeUnavailable, err, "connect to redis at %s", opts.Addr)
	}
	return newRedis(client, cfg.Prefix), nil
}

func newRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(table string) string {
	return r.prefix + table
}

// Mark implements [Markers].
func (r *Redis) Mark(ctx context.Context, table string, until time.Time) error {
	if err := errors.ValidateTable(table); err != nil {
		return err
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	err := r.client.Set(ctx, r.key(table), until.UnixMilli(), ttl).Err()
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, err, "mark %s", table)
	}
	return nil
}

// Until implements [Markers].
func (r *Redis) Until(ctx context.Context, table string) (time.Time, bool, error) {
	v, err := r.client.Get(ctx, r.key(table)).Result()
	if stderrors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(errors.ErrCodeUnavailable, err, "read marker for %s", table)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.Wrap(errors.ErrCodeInternal, err, "corrupt marker for %s", table)
	}
	return time.UnixMilli(ms), true, nil
}

// Clear implements [Markers].
func (r *Redis) Clear(ctx context.Context, table string) error {
	if err := r.client.Del(ctx, r.key(table)).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, err, "clear marker for %s", table)
	}
	return nil
}

// Close closes the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
