package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type keyLock struct {
	sem   chan struct{} // full while the lock is held
	owner string        // token of the current holder, guarded by MemoryLocker.mu
	refs  int           // holders and waiters
}

// MemoryLocker is an in-process lock table keyed by string. Entries are
// evicted once nobody holds or waits for them, and eviction happens under
// the table mutex in Release so that a waiter that already looked up the
// entry never ends up holding an orphaned lock.
type MemoryLocker struct {
	mu          sync.Mutex
	locks       map[string]*keyLock
	waitTimeout time.Duration
	log         zerolog.Logger
}

// NewMemoryLocker creates a MemoryLocker. A zero waitTimeout waits until the
// caller's context is done.
func NewMemoryLocker(waitTimeout time.Duration, log zerolog.Logger) *MemoryLocker {
	return &MemoryLocker{
		locks:       make(map[string]*keyLock),
		waitTimeout: waitTimeout,
		log:         log,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	select {
	case kl.sem <- struct{}{}:
		token := uuid.NewString()
		l.mu.Lock()
		kl.owner = token
		l.mu.Unlock()
		return token, nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, kl)
		l.mu.Unlock()
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLockAcquireFailed, key, ctx.Err())
	}
}

// Release frees key only when token belongs to the current holder. A stale
// or repeated release is logged and leaves the lock as it is.
func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		l.log.Warn().Str("key", key).Msg("release of unknown lock")
		return nil
	}

	if token == "" || kl.owner != token {
		l.log.Warn().Str("key", key).Msg("release of lock not owned by this token")
		return nil
	}

	kl.owner = ""
	<-kl.sem
	l.unref(key, kl)
	return nil
}

// unref must be called with l.mu held.
func (l *MemoryLocker) unref(key string, kl *keyLock) {
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Size returns the number of keys currently tracked.
func (l *MemoryLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
