// Package lock provides a Redis-backed distributed lock used to keep the
// tick scheduler and maintenance jobs single-writer when the engine runs
// with more than one replica (spec §5's single-writer policy, generalized
// beyond a single process). Grounded on the teacher's go-redis usage in
// services/worker's queue locking, upgraded to redis/go-redis/v9.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock was already expired or
// held by someone else.
var ErrNotHeld = errors.New("lock: not held by this holder")

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// Lock is a single acquisition of a named Redis lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Locker acquires named locks with a TTL, using SET NX PX for the
// acquisition and a compare-and-delete Lua script for release so a holder
// never releases a lock it no longer owns (e.g. after TTL expiry and
// reacquisition by another replica).
type Locker struct {
	client *redis.Client
}

func New(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// TryAcquire attempts to acquire key for ttl, returning (nil, false) if
// another holder already has it.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: l.client, key: key, token: token}, true, nil
}

// Renew extends the lock's TTL iff it is still held by this token, letting
// a long-lived holder (e.g. the process-wide singleton lock) keep a short
// TTL without risking expiry mid-run.
func (lk *Lock) Renew(ctx context.Context, ttl time.Duration) error {
	res, err := lk.client.Eval(ctx, renewScript, []string{lk.key}, lk.token, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release drops the lock iff it is still held by this token.
func (lk *Lock) Release(ctx context.Context) error {
	res, err := lk.client.Eval(ctx, releaseScript, []string{lk.key}, lk.token).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotHeld
	}
	return nil
}
