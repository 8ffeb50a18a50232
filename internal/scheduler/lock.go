package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("scheduler: lock held elsewhere")

// DefaultLockKey is the Redis key guarding pipeline runs.
const DefaultLockKey = "vacancy-sync:run-lock"

// DefaultLockTTL bounds how long a crashed holder blocks other processes.
const DefaultLockTTL = time.Hour

// Locker guards a run across processes.
type Locker interface {
	// TryLock acquires the lock without waiting. The returned function
	// releases it.
	TryLock(ctx context.Context) (unlock func(), err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-instance Redis lock: SET NX PX with a random
// token, released by compare-and-delete.
type RedisLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisLock returns a lock on key. Zero values select the defaults.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (l *RedisLock) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// the run context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, nil
}
