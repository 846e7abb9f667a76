package model

import "time"

// Reservation status values. PENDING -> HOLD -> PAID is the success
// path; PENDING and HOLD may also end in CANCELLED (explicit cancel,
// release to zero seats, or expiry). PAID may be cancelled until the
// configured cutoff before the schedule starts.
const (
	ReservationPending   = "PENDING"
	ReservationHold      = "HOLD"
	ReservationPaid      = "PAID"
	ReservationCancelled = "CANCELLED"
)

// Reservation aggregates the seats a user is booking on one schedule.
// TotalAmount always equals the sum of the current HeldSeat price
// snapshots; the engine recomputes it after every hold/release batch.
type Reservation struct {
	ID               uint64     // reservations.id
	UserID           uint64     // reservations.user_id
	ScheduleID       uint64     // reservations.schedule_id
	Status           string     // reservations.status
	TotalAmount      int        // reservations.total_amount
	ExpiresAt        *time.Time // reservations.expires_at (nullable)
	DeliveryMethod   *string    // reservations.delivery_method (nullable)
	RecipientName    *string    // reservations.recipient_name (nullable)
	RecipientPhone   *string    // reservations.recipient_phone (nullable)
	RecipientAddress *string    // reservations.recipient_address (nullable)
	RecipientZipCode *string    // reservations.recipient_zip_code (nullable)
	CancelledAt      *time.Time // reservations.cancelled_at (nullable)
	CreatedAt        time.Time  // reservations.created_at
	UpdatedAt        time.Time  // reservations.updated_at
}

// IsOwnedBy reports whether the reservation belongs to the given user.
func (r *Reservation) IsOwnedBy(userID uint64) bool { return r.UserID == userID }

// Expired reports whether the hold window has lapsed.
func (r *Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// HeldSeat is the join row between a reservation and a seat. Price is a
// snapshot taken at hold time and is immune to later price-grade edits.
type HeldSeat struct {
	ID            uint64    // held_seats.id
	ReservationID uint64    // held_seats.reservation_id
	SeatID        uint64    // held_seats.seat_id
	Price         int       // held_seats.price
	CreatedAt     time.Time // held_seats.created_at
}
