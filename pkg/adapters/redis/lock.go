package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/rluijk/guided-llm-cli/pkg/ports"
)

// unlockScript deletes the lock only when the stored token matches, so a
// holder whose TTL lapsed cannot release a lock someone else re-acquired.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis SET NX with a
// per-acquisition token.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a Redis locker. An empty prefix defaults to "guide:lock:".
func NewLocker(client *backend.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "guide:lock:"
	}
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock polls SetNX until the lock is acquired or ctx is done. The caller
// bounds the wait via ctx; ttl caps how long a crashed holder can block
// others.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
