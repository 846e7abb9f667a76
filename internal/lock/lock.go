// Package lock provides the named per-seat mutex that serializes all
// mutations of one (schedule, seat) pair across processes. Locks carry
// a lease so a crashed holder cannot wedge a seat forever, and a
// bounded acquire wait so contention fails fast instead of queueing.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when the bounded wait elapses without the
// lock being obtained. The seat hold engine maps it to a LOCK_TIMEOUT
// conflict.
var ErrNotAcquired = errors.New("seat lock not acquired")

// SeatLocker acquires the mutex for one seat. The returned release
// function is safe to call exactly once and must be called on every
// path, success or failure.
type SeatLocker interface {
	Acquire(ctx context.Context, scheduleID, seatID uint64) (release func(), err error)
}

func seatLockKey(scheduleID, seatID uint64) string {
	return fmt.Sprintf("seat:lock:%d:%d", scheduleID, seatID)
}
