package port

import "context"

type Locker interface {
	// Acquire blocks until the lock for key is held or the wait is abandoned,
	// in which case the error wraps domain.ErrLockAcquireFailed. The returned
	// token identifies this acquisition and must be passed to Release
	Acquire(ctx context.Context, key string) (token string, err error)

	// Release frees the lock for key if token still owns it. Releasing with
	// a token that does not own the lock leaves the current holder alone, is
	// logged by the implementation and is not an error
	Release(ctx context.Context, key, token string) error
}
