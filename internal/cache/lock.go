package cache

import (
	"context"
	"sync"
	"time"

	"civicbudget/internal/uuid"
)

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	// TryLock acquires key for ttl. It returns false without error when
	// another holder has it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// RedisLocker implements Locker with SET NX PX and a token-checked release, so
// an expired holder cannot release a lock taken over by someone else.
type RedisLocker struct {
	client *Client
}

// NewRedisLocker creates a Locker backed by client.
func NewRedisLocker(client *Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	token := uuid.New()
	ok, err := l.client.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &redisLock{client: l.client, key: key, token: token}, true, nil
}

type redisLock struct {
	client *Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	_, err := l.client.CompareAndDelete(ctx, l.key, l.token)
	return err
}

// MemoryLocker implements Locker within a single process. It is used when no
// Redis URL is configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemoryLocker creates an in-process Locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}
	token := uuid.New()
	l.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: token}, true, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLock) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if e, ok := l.locker.held[l.key]; ok && e.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
