package model

import "time"

// Seat status values. AVAILABLE and HOLD transitions are owned by the
// seat hold engine; SOLD is written only by the payment collaborator.
const (
	SeatAvailable = "AVAILABLE"
	SeatHold      = "HOLD"
	SeatSold      = "SOLD"
)

// Seat is one sellable seat of a performance schedule. The MySQL row is
// the authoritative copy; the Redis hold-owner key and sold set are
// advisory accelerants and may lag behind it.
//
// HoldUserID and HoldExpiresAt are set only while Status is HOLD.
type Seat struct {
	ID            uint64     // performance_seats.id
	ScheduleID    uint64     // performance_seats.schedule_id
	PriceGradeID  uint64     // performance_seats.price_grade_id
	Block         string     // performance_seats.block
	RowNumber     uint32     // performance_seats.row_number
	SeatNumber    uint32     // performance_seats.seat_number
	Status        string     // performance_seats.status
	HoldUserID    *uint64    // performance_seats.hold_user_id (nullable)
	HoldExpiresAt *time.Time // performance_seats.hold_expires_at (nullable)
	CreatedAt     time.Time  // performance_seats.created_at
	UpdatedAt     time.Time  // performance_seats.updated_at
}

// HoldLapsed reports whether an authoritative HOLD has outlived its
// deadline. Used for lazy reconciliation when the cache owner key has
// already expired but the row still says HOLD.
func (s *Seat) HoldLapsed(now time.Time) bool {
	return s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}
