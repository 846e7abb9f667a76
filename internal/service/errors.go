// Package service implements the booking core: admission-gated booking
// sessions, the all-or-nothing seat hold engine, reservation lifecycle
// and cancellation, and the expiry sweep. Services own the ordering of
// lock, cache and database writes; handlers only translate errors.
package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrSeatNotFound             = errors.New("seat not found on schedule")
	ErrUnauthorized             = errors.New("reservation belongs to another user")
	ErrAlreadyPaid              = errors.New("reservation is already paid")
	ErrReservationExpired       = errors.New("reservation hold window has expired")
	ErrInvalidReservationStatus = errors.New("operation not allowed in current reservation status")
	ErrCancelDeadlinePassed     = errors.New("cancellation deadline has passed")
	ErrNoSeatsReserved          = errors.New("reservation has no held seats")
	ErrReservationAlreadyExists = errors.New("user already has an active reservation for this schedule")
	ErrInvalidWaitingToken      = errors.New("waiting token is invalid or expired")
	ErrScheduleMismatch         = errors.New("waiting token was issued for a different schedule")
	ErrQueueSlotExpired         = errors.New("queue slot is invalid or expired")
	ErrDeviceMismatch           = errors.New("device does not match the admitted device")
	ErrDeviceAlreadyUsed        = errors.New("another device already holds a live session for this user")
	ErrBookingSessionExpired    = errors.New("booking session has expired")
	ErrInvalidBookingSession    = errors.New("booking session is invalid")
	ErrSessionScheduleMismatch  = errors.New("booking session belongs to a different schedule")
	ErrNotInActive              = errors.New("session is not in the active set")
	ErrTooManySeats             = errors.New("seat count exceeds the per-reservation limit")
	ErrDuplicateRequest         = errors.New("identical request is already in flight")
)

// Conflict reasons reported per seat when a hold batch aborts.
const (
	ConflictAlreadyHeld = "ALREADY_HELD"
	ConflictAlreadySold = "ALREADY_SOLD"
	ConflictLockTimeout = "LOCK_TIMEOUT"
)

// ConflictSeat describes one seat the batch could not take.
type ConflictSeat struct {
	SeatID        uint64 `json:"seatId"`
	CurrentStatus string `json:"currentStatus"`
	Reason        string `json:"reason"`
}

// SeatHoldConflictError aborts a hold batch. Every seat committed
// earlier in the same batch has already been rolled back when this is
// returned.
type SeatHoldConflictError struct {
	ReservationID uint64
	Conflicts     []ConflictSeat
	UpdatedAt     time.Time
}

func (e *SeatHoldConflictError) Error() string {
	return fmt.Sprintf("seat hold conflict on reservation %d: %d seat(s) unavailable",
		e.ReservationID, len(e.Conflicts))
}
