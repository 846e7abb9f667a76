// Package event carries the seat hold/release events published after
// the authoritative store commit. Listeners append the change feed,
// write the audit trail, and mirror events to the message broker; all
// of them must be idempotent because delivery is at-least-once.
package event

import (
	"context"
	"sync"
	"time"
)

// SeatHoldCompleted is published after a seat's HOLD commit has been
// durably written.
type SeatHoldCompleted struct {
	ScheduleID uint64
	SeatID     uint64
	UserID     uint64
	Status     string
	HoldTTL    time.Duration
	ExpiresAt  time.Time
}

// SeatReleaseCompleted is published after a seat has been restored to
// AVAILABLE. UserID is 0 for system-initiated releases (expiry sweep,
// lazy reconciliation).
type SeatReleaseCompleted struct {
	ScheduleID uint64
	SeatID     uint64
	UserID     uint64
	Status     string
}

// SeatSoldCompleted is published when the payment collaborator marks a
// seat SOLD, and when a PAID cancellation restores it.
type SeatSoldCompleted struct {
	ScheduleID uint64
	SeatID     uint64
	Status     string
}

// Bus delivers events to registered listeners.
type Bus interface {
	Publish(ctx context.Context, evt any)
}

// Listener receives every published event and dispatches on its type.
type Listener func(ctx context.Context, evt any)

// InMemoryBus dispatches synchronously to all listeners in
// subscription order. Listener failures are the listener's problem; the
// publish path never fails.
type InMemoryBus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewInMemoryBus() *InMemoryBus { return &InMemoryBus{} }

func (b *InMemoryBus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *InMemoryBus) Publish(ctx context.Context, evt any) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, evt)
	}
}
