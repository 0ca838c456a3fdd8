package sched

import (
	"context"
	"time"
)

// Locker guards a sweep so only one replica runs it per tick. Best effort:
// every sweep is idempotent, so a lost lock only costs duplicate reads.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}
