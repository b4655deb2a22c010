package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
)

const defaultLockTTL = 30 * time.Minute

// Lock coordinates exclusive runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type heldLock interface {
	Release(ctx context.Context) error
}

// locker is the subset of redislock.Client used by RedisLock.
type locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (heldLock, error)
}

type redislockClient struct {
	client *redislock.Client
}

func (c redislockClient) Obtain(ctx context.Context, key string, ttl time.Duration) (heldLock, error) {
	lock, err := c.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// RedisLock implements Lock on top of bsm/redislock. The lock expires after ttl even if the
// holder dies, so ttl must exceed the longest expected run.
type RedisLock struct {
	client locker
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	held heldLock
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redislock.RedisClient, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return newRedisLock(redislockClient{client: redislock.New(client)}, key, ttl)
}

func newRedisLock(client locker, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL without waiting.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != nil {
		return false, nil
	}
	lock, err := l.client.Obtain(ctx, l.key, l.ttl)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain lock %s: %w", l.key, err)
	}
	l.held = lock
	return true, nil
}

// Release frees the lock if this instance still holds it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		return nil
	}
	err := l.held.Release(ctx)
	l.held = nil
	if err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// LocalLock serializes runs within one process. It is only used in dev or when a single
// replica opts out of redis.
type LocalLock struct {
	held atomic.Bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.held.Store(false)
	return nil
}
