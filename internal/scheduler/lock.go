package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/BartekS5/dailyetl/pkg/logger"
)

// ErrLocked is returned by Acquire while another run holds the lock.
var ErrLocked = errors.New("run lock is held by another run")

// Locker keeps two runs of the same workflow from overlapping.
type Locker interface {
	// Acquire takes the lock without waiting. The returned release func
	// may be called more than once.
	Acquire(ctx context.Context) (release func(), err error)
}

// MemoryLocker only guards runs inside this process.
type MemoryLocker struct {
	mu sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{}
}

func (l *MemoryLocker) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the lock only if it still holds our token, so a
// run that outlived the TTL cannot release a lock taken by the next run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker guards runs across processes with SET NX PX. The TTL bounds
// how long a crashed holder can block later runs.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := ulid.Make().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				logger.Warnw("failed to release run lock", "key", l.key, "error", err)
			}
		})
	}
	return release, nil
}
