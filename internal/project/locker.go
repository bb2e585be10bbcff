package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked indicates another writer holds the project lock.
var ErrLocked = errors.New("project: locked by another writer")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker grants exclusive, expiring write access to a key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release, so an expired holder never removes a successor's lock.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisLocker returns nil when client is nil.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock attempts to take key for ttl and returns the holder token.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("project: lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("project: lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("project: lock ttl must be positive")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release drops key only while it still holds token.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
