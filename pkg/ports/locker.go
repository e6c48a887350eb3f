package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker provides multi-process mutual exclusion. The session
// manager uses it to guarantee at-most-one-writer per session id across
// engine replicas; in-process exclusion is handled separately.
type DistributedLocker interface {
	// Lock acquires the lock for the given key, blocking until it is
	// acquired or ctx is cancelled. The TTL bounds how long a crashed
	// holder can keep the lock. The returned UnlockFunc MUST be called to
	// release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
