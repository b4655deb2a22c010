package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
)

type fakeHeld struct {
	owner    *fakeLocker
	released bool
	err      error
}

func (h *fakeHeld) Release(context.Context) error {
	h.released = true
	h.owner.taken = false
	return h.err
}

type fakeLocker struct {
	taken      bool
	err        error
	releaseErr error
	lastTTL    time.Duration
}

func (f *fakeLocker) Obtain(_ context.Context, _ string, ttl time.Duration) (heldLock, error) {
	f.lastTTL = ttl
	if f.err != nil {
		return nil, f.err
	}
	if f.taken {
		return nil, redislock.ErrNotObtained
	}
	f.taken = true
	return &fakeHeld{owner: f, err: f.releaseErr}, nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	backend := &fakeLocker{}
	first, err := newRedisLock(backend, "pf:lock:reclaim", 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	second, _ := newRedisLock(backend, "pf:lock:reclaim", time.Minute)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if backend.lastTTL != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", backend.lastTTL)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second holder must not obtain a held lock")
	}
	if ok, _ := first.Acquire(ctx); ok {
		t.Fatal("re-entrant acquire must fail")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("releasing an unheld lock is a no-op: %v", err)
	}
}

func TestRedisLockErrors(t *testing.T) {
	boom := errors.New("connection refused")
	lock, _ := newRedisLock(&fakeLocker{err: boom}, "k", time.Minute)
	if _, err := lock.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}

	expired, _ := newRedisLock(&fakeLocker{releaseErr: redislock.ErrLockNotHeld}, "k", time.Minute)
	if ok, _ := expired.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire")
	}
	if err := expired.Release(context.Background()); err != nil {
		t.Fatalf("an expired lock is not a release failure: %v", err)
	}

	if _, err := newRedisLock(&fakeLocker{}, "", time.Minute); err == nil {
		t.Fatal("expected key validation error")
	}
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected client validation error")
	}
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatal("expected busy lock")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}
