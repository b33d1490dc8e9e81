package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docqa/internal/logger"
)

const (
	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	renewScript   = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`
)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisLocker is an advisory per-hash lock shared by every process that
// talks to the same Redis. Keys expire after ttl so a crashed holder
// cannot wedge ingestion forever. A live holder extends the expiry every
// ttl/3 until it unlocks.
type RedisLocker struct {
	log    *logger.Logger
	rdb    redisClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(log *logger.Logger, addr string, ttl time.Duration) (*RedisLocker, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisLocker(log, rdb, ttl), nil
}

func newRedisLocker(log *logger.Logger, rdb redisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: "docqa:ingest:",
		ttl:    ttl,
		poll:   100 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, hash string) (func(), error) {
	key := l.prefix + hash
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", hash, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, hash, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.rdb.Eval(rctx, releaseScript, []string{key}, token).Err(); err != nil {
				l.log.Warn("redis unlock failed", "hash", hash, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) renew(key, token, hash string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := l.rdb.Eval(ctx, renewScript, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			l.log.Warn("redis lock renewal failed", "hash", hash, "error", err)
		case n == 0:
			l.log.Warn("redis lock lost before release", "hash", hash)
			return
		}
	}
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
