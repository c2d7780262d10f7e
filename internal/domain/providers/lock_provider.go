package providers

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired before the wait elapsed.
var ErrLockTimeout = errors.New("lock wait timed out")

// LockProvider serializes work on a key across concurrent requests
type LockProvider interface {
	// Acquire blocks until the key is held or ctx is done. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
