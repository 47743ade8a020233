package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker serialises work on a key. The returned release func must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type LockConfig struct {
	// TTL bounds how long a crashed holder can block the key
	TTL           time.Duration
	RetryInterval time.Duration
	Prefix        string
}

func DefaultLockConfig() LockConfig {
	return LockConfig{
		TTL:           15 * time.Second,
		RetryInterval: 25 * time.Millisecond,
		Prefix:        "lock:",
	}
}

// LockConfigFor sizes the TTL to outlive a critical section bounded by
// storeTimeout, with room for the acquisition wait
func LockConfigFor(storeTimeout time.Duration) LockConfig {
	config := DefaultLockConfig()
	if ttl := 3 * storeTimeout; ttl > config.TTL {
		config.TTL = ttl
	}
	return config
}

// NewLocker returns a Redis-backed locker, or an in-process one when client is nil
func NewLocker(client *redis.Client, config LockConfig) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client, config)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	config LockConfig
}

func NewRedisLocker(client *redis.Client, config LockConfig) *RedisLocker {
	defaults := DefaultLockConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	return &RedisLocker{client: client, config: config}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.config.Prefix + key
	token := uuid.New().String()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.config.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { l.release(lockKey, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockKey)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(lockKey, token string) {
	// The caller's context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
		slog.Error("Failed to release lock", "key", lockKey, "error", err)
	}
}

// LocalLocker is a keyed mutex for single-process deployments
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.unref(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

func (l *LocalLocker) unref(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
