package lock

import (
	"context"
	"fmt"
	"time"

	"fithero/planner/internal/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "fithero:lock:"
	minPoll        = 25 * time.Millisecond
	maxPoll        = 500 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was re-acquired elsewhere is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is an advisory lock shared by every process using the same Redis.
type RedisLocker struct {
	rdb  goredis.UniversalClient
	ttl  time.Duration
	wait time.Duration
	log  *logger.Logger
}

// NewRedisLocker wraps an existing client. ttl bounds how long a crashed
// holder can block the key.
func NewRedisLocker(rdb goredis.UniversalClient, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, log: logger.OrNop(log).With("component", "RedisLocker")}
}

// DialRedis connects and pings, closing the client if Redis is unreachable.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	var deadline <-chan time.Time
	if r.wait > 0 {
		t := time.NewTimer(r.wait)
		defer t.Stop()
		deadline = t.C
	}

	poll := minPoll
	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrLockTimeout
		case <-time.After(poll):
		}
		poll = min(poll*2, maxPoll)
	}
}

func (r *RedisLocker) releaser(redisKey, token string) func() {
	return func() {
		// The caller's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn("lock release failed", "key", redisKey, "error", err)
		}
	}
}
