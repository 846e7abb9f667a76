// Package queue defines message payloads exchanged over the message broker.
package queue

// SeatEvent mirrors a seat status transition onto the broker so
// downstream consumers (analytics, notifications, seat-map pushers) can
// react without polling the change feed.
type SeatEvent struct {
	ScheduleID uint64 `json:"schedule_id"`
	SeatID     uint64 `json:"seat_id"`
	UserID     uint64 `json:"user_id,omitempty"` // 0 for system or sold events
	Status     string `json:"status"`            // AVAILABLE | HOLD | SOLD
	ExpiresAt  string `json:"expires_at,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
