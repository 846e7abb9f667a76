// Package repository provides data access to the authoritative MySQL
// store: seats, reservations, held seats, schedules, price grades and
// the hold audit trail. Sentinel errors let the service layer
// distinguish not-found from infrastructure failures.
package repository

import "errors"

var (
	// ErrSeatNotFound is returned when no seat row exists for the
	// requested (seatId, scheduleId) pair.
	ErrSeatNotFound = errors.New("performance seat not found")

	// ErrReservationNotFound is returned when a reservation id does not
	// resolve to a row.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrScheduleNotFound is returned when a schedule id does not
	// resolve to a row.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrPriceGradeNotFound is returned when a seat references a price
	// grade that no longer exists.
	ErrPriceGradeNotFound = errors.New("price grade not found")
)
