// Package lock provides keyed mutual exclusion for booking decisions.
//
// A Locker serializes callers on the same key while letting different keys
// proceed in parallel. Locks are acquired before the database transaction
// opens; row and advisory locks inside the transaction remain the source of
// truth when several processes share one database.
package lock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a key could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker acquires an exclusive hold on a key. The returned release function
// is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// FreeFormKey guards every booking that is not tied to a published slot.
const FreeFormKey = "bookings:free-form"

func SlotKey(id uuid.UUID) string {
	return "slot:" + id.String()
}
