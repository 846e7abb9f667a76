package lock

import (
	"context"
	"sync"
	"time"
)

const memoryPollInterval = 2 * time.Millisecond

// MemoryLocker is an in-process SeatLocker with the same semantics as
// the Redis locker: bounded acquire wait, auto-expiring lease, and
// releases that cannot drop a lock they no longer own.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]uint64 // lock key -> fencing token
	next  uint64
	wait  time.Duration
	lease time.Duration
}

func NewMemoryLocker(wait, lease time.Duration) *MemoryLocker {
	return &MemoryLocker{held: make(map[string]uint64), wait: wait, lease: lease}
}

func (l *MemoryLocker) Acquire(ctx context.Context, scheduleID, seatID uint64) (func(), error) {
	key := seatLockKey(scheduleID, seatID)
	deadline := time.Now().Add(l.wait)
	for {
		l.mu.Lock()
		if _, busy := l.held[key]; !busy {
			l.next++
			token := l.next
			l.held[key] = token
			l.mu.Unlock()

			var leaseTimer *time.Timer
			if l.lease > 0 {
				leaseTimer = time.AfterFunc(l.lease, func() { l.release(key, token) })
			}
			return func() {
				if leaseTimer != nil {
					leaseTimer.Stop()
				}
				l.release(key, token)
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(memoryPollInterval):
		}
	}
}

func (l *MemoryLocker) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
}
