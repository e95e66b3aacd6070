package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis mutex
// ============================================================================
//
// Acquire:  SET key token NX PX ttl
// Release:  Lua compare-and-delete, so a holder whose lease already expired
//           cannot delete the lock a later holder now owns.
//
// The lock only narrows the window in which two settlements for the same game
// queue on the database row lock. Correctness never depends on it: the row
// lock and the unique sales.game_id stay authoritative.
// ============================================================================

var ErrLockFailed = errors.New("lock: not acquired within retry budget")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

type DistributedLock struct {
	client     *redis.Client
	key        string
	token      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, token string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		token:      token,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Lock retries TryLock until it succeeds, ctx ends, or maxRetries attempts
// have failed.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Err()
}

func SettleLockKey(gameID int64) string {
	return fmt.Sprintf("settle:lock:game:%d", gameID)
}

// NewSettleLock scopes the mutex to one game so settlements of different
// games never wait on each other.
func NewSettleLock(client *redis.Client, gameID int64, token string, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(client, SettleLockKey(gameID), token, ttl)
}
