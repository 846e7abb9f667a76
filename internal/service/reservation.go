package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/stagegate/booking-core/internal/cache"
	"github.com/stagegate/booking-core/internal/event"
	"github.com/stagegate/booking-core/internal/lock"
	"github.com/stagegate/booking-core/internal/model"
	"github.com/stagegate/booking-core/internal/repository"
)

// ReservationService owns the reservation lifecycle around the hold
// engine: creation behind a valid booking session, delivery details,
// payment confirmation, cancellation with refund, and expiry.
type ReservationService struct {
	store        cache.Store
	bus          event.Bus
	locker       lock.SeatLocker
	sessions     *BookingSessionService
	reservations repository.ReservationRepository
	heldSeats    repository.HeldSeatRepository
	seats        repository.SeatRepository
	schedules    repository.ScheduleRepository
	cancelCutoff time.Duration
}

func NewReservationService(
	store cache.Store,
	bus event.Bus,
	locker lock.SeatLocker,
	sessions *BookingSessionService,
	reservations repository.ReservationRepository,
	heldSeats repository.HeldSeatRepository,
	seats repository.SeatRepository,
	schedules repository.ScheduleRepository,
	cancelCutoff time.Duration,
) *ReservationService {
	return &ReservationService{
		store:        store,
		bus:          bus,
		locker:       locker,
		sessions:     sessions,
		reservations: reservations,
		heldSeats:    heldSeats,
		seats:        seats,
		schedules:    schedules,
		cancelCutoff: cancelCutoff,
	}
}

// CancelResult reports what a cancellation undid.
type CancelResult struct {
	ReservationID      uint64    `json:"reservationId"`
	Status             string    `json:"status"`
	RefundAmount       int       `json:"refundAmount"`
	CancelledSeatCount int       `json:"cancelledSeatCount"`
	CancelledAt        time.Time `json:"cancelledAt"`
}

// CreateReservation opens a PENDING reservation for the session's user
// on the session's schedule. One active reservation per (user,
// schedule) at a time.
func (s *ReservationService) CreateReservation(ctx context.Context, userID, scheduleID uint64, sessionID string) (*model.Reservation, error) {
	sessionUser, err := s.sessions.ValidateForSchedule(ctx, sessionID, scheduleID)
	if err != nil {
		return nil, err
	}
	if sessionUser != userID {
		return nil, ErrInvalidBookingSession
	}
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	exists, err := s.reservations.ExistsActive(ctx, userID, scheduleID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrReservationAlreadyExists
	}
	res := &model.Reservation{
		UserID:     userID,
		ScheduleID: scheduleID,
		Status:     model.ReservationPending,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}
	log.Printf("[Reservation] created - reservationId=%d userId=%d scheduleId=%d", res.ID, userID, scheduleID)
	return res, nil
}

// UpdateDeliveryInfo records ticket delivery details on a live HOLD.
func (s *ReservationService) UpdateDeliveryInfo(ctx context.Context, reservationID, userID uint64, method, name, phone, address, zipCode string) error {
	res, err := s.getOwned(ctx, reservationID, userID)
	if err != nil {
		return err
	}
	if res.Status != model.ReservationHold {
		return ErrInvalidReservationStatus
	}
	if res.Expired(time.Now()) {
		return ErrReservationExpired
	}
	return s.reservations.UpdateDeliveryInfo(ctx, reservationID, method, name, phone, address, zipCode)
}

// CancelReservation cancels a HOLD or PAID reservation and gives its
// seats back. A HOLD cancel refunds nothing; a PAID cancel refunds the
// full total and is only allowed up to the cutoff before the schedule
// starts.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, userID uint64) (*CancelResult, error) {
	res, err := s.getOwned(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if res.Status == model.ReservationCancelled {
		return nil, ErrInvalidReservationStatus
	}
	rows, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoSeatsReserved
	}

	seatIDs := make([]uint64, 0, len(rows))
	refund := 0
	for _, hs := range rows {
		seatIDs = append(seatIDs, hs.SeatID)
		refund += hs.Price
	}

	switch res.Status {
	case model.ReservationPaid:
		schedule, err := s.schedules.GetByID(ctx, res.ScheduleID)
		if err != nil {
			return nil, err
		}
		if time.Now().After(schedule.StartsAt.Add(-s.cancelCutoff)) {
			return nil, ErrCancelDeadlinePassed
		}
		if err := s.seats.RestoreAvailable(ctx, seatIDs); err != nil {
			return nil, err
		}
		for _, seatID := range seatIDs {
			if err := s.store.SRem(ctx, cache.SoldSetKey(res.ScheduleID), formatID(seatID)); err != nil {
				log.Printf("[Reservation] sold set trim failed - seatId=%d: %v", seatID, err)
			}
			s.bus.Publish(ctx, event.SeatSoldCompleted{
				ScheduleID: res.ScheduleID,
				SeatID:     seatID,
				Status:     model.SeatAvailable,
			})
		}

	case model.ReservationHold:
		refund = 0
		if err := s.seats.RestoreAvailable(ctx, seatIDs); err != nil {
			return nil, err
		}
		for _, seatID := range seatIDs {
			if err := s.store.Del(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID)); err != nil {
				log.Printf("[Reservation] owner key del failed - seatId=%d: %v", seatID, err)
			}
			s.bus.Publish(ctx, event.SeatReleaseCompleted{
				ScheduleID: res.ScheduleID,
				SeatID:     seatID,
				UserID:     userID,
				Status:     model.SeatAvailable,
			})
		}

	default:
		return nil, ErrInvalidReservationStatus
	}

	if err := s.heldSeats.DeleteByReservation(ctx, reservationID); err != nil {
		return nil, err
	}
	cancelledAt := time.Now().UTC()
	if err := s.reservations.MarkCancelled(ctx, reservationID, cancelledAt); err != nil {
		return nil, err
	}
	log.Printf("[Reservation] cancelled - reservationId=%d status=%s refund=%d seats=%d",
		reservationID, res.Status, refund, len(seatIDs))
	return &CancelResult{
		ReservationID:      reservationID,
		Status:             model.ReservationCancelled,
		RefundAmount:       refund,
		CancelledSeatCount: len(seatIDs),
		CancelledAt:        cancelledAt,
	}, nil
}

// MarkSeatsAsSold finalizes payment: every held seat goes SOLD, the
// sold set and change feed are updated, and the reservation becomes
// PAID. Called by the payment collaborator after capture.
func (s *ReservationService) MarkSeatsAsSold(ctx context.Context, scheduleID, reservationID uint64) error {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return ErrReservationNotFound
		}
		return err
	}
	if res.ScheduleID != scheduleID {
		return ErrSessionScheduleMismatch
	}
	if res.Status != model.ReservationHold {
		return ErrInvalidReservationStatus
	}
	rows, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNoSeatsReserved
	}

	seatIDs := make([]uint64, 0, len(rows))
	for _, hs := range rows {
		seatIDs = append(seatIDs, hs.SeatID)
	}
	if err := s.seats.MarkSold(ctx, seatIDs); err != nil {
		return err
	}
	for _, seatID := range seatIDs {
		if err := s.store.Del(ctx, cache.HoldOwnerKey(scheduleID, seatID)); err != nil {
			log.Printf("[Reservation] owner key del failed - seatId=%d: %v", seatID, err)
		}
		if err := s.store.SAdd(ctx, cache.SoldSetKey(scheduleID), formatID(seatID)); err != nil {
			log.Printf("[Reservation] sold set add failed - seatId=%d: %v", seatID, err)
		}
		s.bus.Publish(ctx, event.SeatSoldCompleted{
			ScheduleID: scheduleID,
			SeatID:     seatID,
			Status:     model.SeatSold,
		})
	}
	if err := s.reservations.UpdateStatusTotals(ctx, reservationID, model.ReservationPaid, res.TotalAmount, nil); err != nil {
		return err
	}
	log.Printf("[Reservation] paid - reservationId=%d seats=%d total=%d", reservationID, len(seatIDs), res.TotalAmount)
	return nil
}

// ExpireReservationAndReleaseSeats tears down one lapsed HOLD: each
// seat still held by the reservation's user goes back to AVAILABLE
// under its lock, then the reservation is cancelled. Safe to call
// concurrently with a user action on the same seats; the per-seat lock
// and the status recheck make it converge.
func (s *ReservationService) ExpireReservationAndReleaseSeats(ctx context.Context, res *model.Reservation) error {
	rows, err := s.heldSeats.ListByReservation(ctx, res.ID)
	if err != nil {
		return err
	}
	for _, hs := range rows {
		if err := s.expireOne(ctx, res, hs.SeatID); err != nil {
			log.Printf("[ExpirySweep] seat release failed - reservationId=%d seatId=%d: %v", res.ID, hs.SeatID, err)
		}
	}
	if err := s.heldSeats.DeleteByReservation(ctx, res.ID); err != nil {
		return err
	}
	if err := s.reservations.MarkCancelled(ctx, res.ID, time.Now().UTC()); err != nil {
		return err
	}
	log.Printf("[ExpirySweep] reservation expired - reservationId=%d seats=%d", res.ID, len(rows))
	return nil
}

func (s *ReservationService) expireOne(ctx context.Context, res *model.Reservation, seatID uint64) error {
	release, err := s.locker.Acquire(ctx, res.ScheduleID, seatID)
	if err != nil {
		return err
	}
	defer release()

	seat, err := s.seats.GetByIDAndSchedule(ctx, seatID, res.ScheduleID)
	if err != nil {
		return err
	}
	// only undo our own hold; the seat may have been re-held or sold
	if seat.Status != model.SeatHold || seat.HoldUserID == nil || *seat.HoldUserID != res.UserID {
		return nil
	}
	if err := s.seats.ClearHold(ctx, seatID); err != nil {
		return err
	}
	if err := s.store.Del(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID)); err != nil {
		log.Printf("[ExpirySweep] owner key del failed - seatId=%d: %v", seatID, err)
	}
	s.bus.Publish(ctx, event.SeatReleaseCompleted{
		ScheduleID: res.ScheduleID,
		SeatID:     seatID,
		Status:     model.SeatAvailable,
	})
	return nil
}

// GetReservation returns the reservation with its held seats, owner
// guarded.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, []model.HeldSeat, error) {
	res, err := s.getOwned(ctx, reservationID, userID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	return res, rows, nil
}

func (s *ReservationService) getOwned(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !res.IsOwnedBy(userID) {
		return nil, ErrUnauthorized
	}
	return res, nil
}
