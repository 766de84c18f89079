package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// releaseIfOwnerScript deletes a lock key only when its value still matches
// the releasing caller's token, so a lease can never release a different
// holder's lock (e.g. after its own TTL expired and someone else acquired
// it in the meantime).
const releaseIfOwnerScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const lockKeyPrefix = "orderwatch:lock:"

// LockManager hands out Redis SETNX-with-TTL leases, used to keep a
// periodic job (the snapshot archiver) single-flighted across more than
// one watcher instance sharing the same Redis.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

// NewLockManager creates a LockManager backed by c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.rdb, release: redis.NewScript(releaseIfOwnerScript)}
}

// Lease is a held distributed lock. Release is safe to call more than
// once and safe to call from a deferred statement after Acquire fails
// (a nil *Lease's Release is a no-op).
type Lease struct {
	lm    *LockManager
	key   string
	token string
	once  sync.Once
}

// Release gives up the lease, deleting its Redis key only if this Lease
// still owns it.
func (l *Lease) Release(ctx context.Context) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		_ = l.lm.release.Run(ctx, l.lm.rdb, []string{l.key}, l.token).Err()
	})
}

// Acquire attempts to obtain a distributed lock for name with the given
// TTL, returning domain.ErrLockHeld if another holder currently owns it.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	token := uuid.New().String()
	key := lockKeyPrefix + name

	ok, err := lm.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	return &Lease{lm: lm, key: key, token: token}, nil
}
