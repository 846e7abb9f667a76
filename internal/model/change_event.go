package model

import "time"

// SeatChangeEvent is one entry of the per-schedule seat change feed.
// Version is a per-schedule monotonically increasing counter; events
// are append-only and never mutated once published.
type SeatChangeEvent struct {
	SeatID    uint64 `json:"seatId"`
	Status    string `json:"status"`
	UserID    uint64 `json:"userId"`
	Version   uint64 `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Hold audit actions.
const (
	AuditHold    = "HOLD"
	AuditRelease = "RELEASE"
)

// HoldAudit is one row of the seat hold audit trail, written after
// every committed hold or release.
type HoldAudit struct {
	ID        uint64     // seat_hold_logs.id
	SeatID    uint64     // seat_hold_logs.seat_id
	UserID    uint64     // seat_hold_logs.user_id (0 for system-initiated releases)
	Action    string     // seat_hold_logs.action
	ExpiresAt *time.Time // seat_hold_logs.expires_at (nullable, HOLD only)
	CreatedAt time.Time  // seat_hold_logs.created_at
}
