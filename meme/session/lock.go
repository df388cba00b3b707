package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a redis lock cannot be acquired before ctx ends.
var ErrLockTimeout = errors.New("session: lock not acquired")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker serializes event handling for one chat key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// NoLock performs no serialization: concurrent events for the same chat race
// and the last session write wins.
type NoLock struct{}

func (NoLock) Lock(context.Context, string) (Unlock, error) {
	return func() {}, nil
}

// MemoryLocker serializes per key within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	waiters int
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

func (m *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	kl.waiters++
	m.mu.Unlock()

	kl.mu.Lock()
	if err := ctx.Err(); err != nil {
		m.release(key, kl)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { m.release(key, kl) }) }, nil
}

// release drops the entry once nobody holds or waits for it.
func (m *MemoryLocker) release(key string, kl *keyLock) {
	m.mu.Lock()
	kl.waiters--
	if kl.waiters == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
	kl.mu.Unlock()
}

// Len reports how many keys currently have holders or waiters.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker serializes per key across processes with SET NX PX.
type RedisLocker struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker builds a locker. ttl bounds how long a crashed holder can block a chat.
func NewRedisLocker(client *backend.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, poll: 50 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// ctx may already be done; release must still happen.
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
