package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/logger"
)

func TestLocalLockerSerializesSameHash(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "h")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, l.locks, "entries should be dropped once unused")
}

func TestLocalLockerDifferentHashesDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "h")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "h")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	unlock2, err := l.Lock(context.Background(), "h")
	require.NoError(t, err)
	unlock2()
}

type fakeRedis struct {
	mu       sync.Mutex
	held     map[string]string
	evals    int
	renewals int
	setnxes  int
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setnxes++
	if _, ok := f.held[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if script == renewScript {
		if f.held[keys[0]] != args[0].(string) {
			return redis.NewCmdResult(int64(0), nil)
		}
		f.renewals++
		return redis.NewCmdResult(int64(1), nil)
	}
	if f.held[keys[0]] == args[0].(string) {
		delete(f.held, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisLockerWaitsForRelease(t *testing.T) {
	fr := &fakeRedis{held: map[string]string{}}
	l := newRedisLocker(logger.NewNop(), fr, time.Minute)
	l.poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "abc")
	require.NoError(t, err)
	assert.Contains(t, fr.held, "docqa:ingest:abc")

	acquired := make(chan struct{})
	go func() {
		unlock2, err := l.Lock(context.Background(), "abc")
		assert.NoError(t, err)
		close(acquired)
		unlock2()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still held it")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestRedisLockerCancelledWhileWaiting(t *testing.T) {
	fr := &fakeRedis{held: map[string]string{"docqa:ingest:abc": "someone-else"}}
	l := newRedisLocker(logger.NewNop(), fr, time.Minute)
	l.poll = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "someone-else", fr.held["docqa:ingest:abc"], "foreign lock must not be touched")
}

func (f *fakeRedis) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	fr := &fakeRedis{held: map[string]string{}}
	l := newRedisLocker(logger.NewNop(), fr, 30*time.Millisecond)

	unlock, err := l.Lock(context.Background(), "abc")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return fr.renewCount() >= 3 }, time.Second, 5*time.Millisecond)

	unlock()
	unlock()
	stopped := fr.renewCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, fr.renewCount(), "renewal must stop after unlock")
	assert.NotContains(t, fr.held, "docqa:ingest:abc")
}

func TestRedisLockerStopsRenewingLostLock(t *testing.T) {
	fr := &fakeRedis{held: map[string]string{}}
	l := newRedisLocker(logger.NewNop(), fr, 30*time.Millisecond)

	unlock, err := l.Lock(context.Background(), "abc")
	require.NoError(t, err)
	defer unlock()

	fr.mu.Lock()
	fr.held["docqa:ingest:abc"] = "someone-else"
	fr.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fr.renewCount())
}
