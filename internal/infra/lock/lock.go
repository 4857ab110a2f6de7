// Package lock serializes signing operations per certificate so two racing
// callers never interleave session use for the same key material.
package lock

import "context"

// Lock is an acquired lock; Unlock releases it exactly once.
type Lock interface {
	Unlock()
}

// Locker hands out mutual exclusion per key. Acquire blocks until the lock is
// free or the context is done.
type Locker[K comparable] interface {
	Acquire(ctx context.Context, key K) (Lock, error)
}
