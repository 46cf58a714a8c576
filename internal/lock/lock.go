// Package lock provides per-key mutual exclusion across service instances.
// The database row lock is the source of truth for registration capacity; a
// Locker keeps contending requests from piling up on that row.
package lock

import (
	"context"
	"errors"
)

var ErrTimeout = errors.New("timed out waiting for lock")

type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func EventKey(eventID string) string {
	return "event_lock:" + eventID
}
