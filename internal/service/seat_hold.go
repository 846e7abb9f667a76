package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/stagegate/booking-core/internal/cache"
	"github.com/stagegate/booking-core/internal/event"
	"github.com/stagegate/booking-core/internal/lock"
	"github.com/stagegate/booking-core/internal/model"
	"github.com/stagegate/booking-core/internal/repository"
)

// SeatHoldService is the all-or-nothing hold engine. Each seat is taken
// under its distributed lock in the caller's order; the first conflict
// aborts the batch and compensates every seat committed before it.
type SeatHoldService struct {
	locker       lock.SeatLocker
	store        cache.Store
	feed         *cache.ChangeFeed
	bus          event.Bus
	seats        repository.SeatRepository
	reservations repository.ReservationRepository
	heldSeats    repository.HeldSeatRepository
	priceGrades  repository.PriceGradeRepository
	holdTTL      time.Duration
	maxSeats     int
}

func NewSeatHoldService(
	locker lock.SeatLocker,
	store cache.Store,
	feed *cache.ChangeFeed,
	bus event.Bus,
	seats repository.SeatRepository,
	reservations repository.ReservationRepository,
	heldSeats repository.HeldSeatRepository,
	priceGrades repository.PriceGradeRepository,
	holdTTL time.Duration,
	maxSeats int,
) *SeatHoldService {
	return &SeatHoldService{
		locker:       locker,
		store:        store,
		feed:         feed,
		bus:          bus,
		seats:        seats,
		reservations: reservations,
		heldSeats:    heldSeats,
		priceGrades:  priceGrades,
		holdTTL:      holdTTL,
		maxSeats:     maxSeats,
	}
}

// HeldSeatInfo is one seat in a hold result, with its hold-time price
// snapshot.
type HeldSeatInfo struct {
	SeatID     uint64 `json:"seatId"`
	Block      string `json:"block"`
	RowNumber  uint32 `json:"rowNumber"`
	SeatNumber uint32 `json:"seatNumber"`
	GradeName  string `json:"gradeName"`
	Price      int    `json:"price"`
}

// HoldResult is the state of the reservation after a successful batch.
type HoldResult struct {
	ReservationID    uint64         `json:"reservationId"`
	Status           string         `json:"status"`
	HeldSeats        []HeldSeatInfo `json:"heldSeats"`
	TotalAmount      int            `json:"totalAmount"`
	ExpiresAt        time.Time      `json:"expiresAt"`
	RemainingSeconds int64          `json:"remainingSeconds"`
}

// ReleaseResult is the state of the reservation after releasing seats.
type ReleaseResult struct {
	ReservationID    uint64     `json:"reservationId"`
	Status           string     `json:"status"`
	ReleasedSeatIDs  []uint64   `json:"releasedSeatIds"`
	RemainingSeatCnt int        `json:"remainingSeatCount"`
	TotalAmount      int        `json:"totalAmount"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RemainingSeconds int64      `json:"remainingSeconds"`
}

// SeatChanges is one page of the versioned delta feed.
type SeatChanges struct {
	Events          []model.SeatChangeEvent `json:"events"`
	Version         uint64                  `json:"version"`
	RefreshRequired bool                    `json:"refreshRequired"`
}

// HoldSeats takes every requested seat or none of them. Seats are
// processed in the caller's order; on the first conflicting seat the
// already-committed ones are rolled back and a *SeatHoldConflictError
// is returned. Re-holding a seat the same reservation already holds is
// a no-op. The whole batch also resets the reservation's hold window.
func (s *SeatHoldService) HoldSeats(ctx context.Context, reservationID uint64, seatIDs []uint64, userID uint64) (*HoldResult, error) {
	seatIDs = dedupeIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, ErrSeatNotFound
	}

	res, err := s.loadGuardedReservation(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if res.Status == model.ReservationHold && res.Expired(time.Now()) {
		return nil, ErrReservationExpired
	}

	existing, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if countNewSeats(existing, seatIDs)+len(existing) > s.maxSeats {
		return nil, ErrTooManySeats
	}

	now := time.Now()
	expiresAt := now.Add(s.holdTTL)

	var committed []uint64
	for _, seatID := range seatIDs {
		conflict, didCommit, err := s.holdOne(ctx, res, seatID, userID, expiresAt)
		if err != nil {
			s.rollback(ctx, res, committed)
			return nil, err
		}
		if conflict != nil {
			s.rollback(ctx, res, committed)
			return nil, &SeatHoldConflictError{
				ReservationID: reservationID,
				Conflicts:     []ConflictSeat{*conflict},
				UpdatedAt:     time.Now().UTC(),
			}
		}
		if didCommit {
			committed = append(committed, seatID)
		}
	}

	rows, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		s.rollback(ctx, res, committed)
		return nil, err
	}
	total := 0
	for _, hs := range rows {
		total += hs.Price
	}
	if err := s.reservations.UpdateStatusTotals(ctx, reservationID, model.ReservationHold, total, &expiresAt); err != nil {
		s.rollback(ctx, res, committed)
		return nil, err
	}
	log.Printf("[SeatHold] batch committed - reservationId=%d seats=%d total=%d", reservationID, len(rows), total)

	infos, err := s.describeHeldSeats(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &HoldResult{
		ReservationID:    reservationID,
		Status:           model.ReservationHold,
		HeldSeats:        infos,
		TotalAmount:      total,
		ExpiresAt:        expiresAt,
		RemainingSeconds: int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// holdOne takes one seat under its lock. It returns a conflict for the
// recoverable cases (held by someone else, sold, lock contention), an
// error for fatal ones, and didCommit=false when the seat was already
// held by this reservation.
func (s *SeatHoldService) holdOne(ctx context.Context, res *model.Reservation, seatID, userID uint64, expiresAt time.Time) (*ConflictSeat, bool, error) {
	release, err := s.locker.Acquire(ctx, res.ScheduleID, seatID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return &ConflictSeat{SeatID: seatID, CurrentStatus: s.bestEffortStatus(ctx, res.ScheduleID, seatID), Reason: ConflictLockTimeout}, false, nil
		}
		return nil, false, err
	}
	defer release()

	sold, err := s.store.SIsMember(ctx, cache.SoldSetKey(res.ScheduleID), formatID(seatID))
	if err != nil {
		return nil, false, err
	}
	if sold {
		return &ConflictSeat{SeatID: seatID, CurrentStatus: model.SeatSold, Reason: ConflictAlreadySold}, false, nil
	}

	owner, ok, err := s.store.Get(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID))
	if err != nil {
		return nil, false, err
	}
	if ok && owner != formatID(userID) {
		return &ConflictSeat{SeatID: seatID, CurrentStatus: model.SeatHold, Reason: ConflictAlreadyHeld}, false, nil
	}

	seat, err := s.seats.GetByIDAndSchedule(ctx, seatID, res.ScheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return nil, false, ErrSeatNotFound
		}
		return nil, false, err
	}

	now := time.Now()
	switch seat.Status {
	case model.SeatSold:
		// heal the advisory sold set
		if err := s.store.SAdd(ctx, cache.SoldSetKey(res.ScheduleID), formatID(seatID)); err != nil {
			log.Printf("[SeatHold] sold set heal failed - seatId=%d: %v", seatID, err)
		}
		return &ConflictSeat{SeatID: seatID, CurrentStatus: model.SeatSold, Reason: ConflictAlreadySold}, false, nil

	case model.SeatHold:
		if seat.HoldUserID != nil && *seat.HoldUserID == userID {
			already, err := s.heldSeats.Exists(ctx, res.ID, seatID)
			if err != nil {
				return nil, false, err
			}
			if already {
				return nil, false, nil
			}
		} else if seat.HoldLapsed(now) {
			// lazy reconciliation of an expired hold nobody swept yet
			if err := s.expireSeatLocked(ctx, res.ScheduleID, seat); err != nil {
				return nil, false, err
			}
		} else {
			return &ConflictSeat{SeatID: seatID, CurrentStatus: model.SeatHold, Reason: ConflictAlreadyHeld}, false, nil
		}
	}

	if err := s.commitHold(ctx, res, seat, userID, expiresAt); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// commitHold writes the authoritative row, then the advisory owner key,
// then the price snapshot, then publishes. Order matters: the database
// is the tie-breaker, so it goes first.
func (s *SeatHoldService) commitHold(ctx context.Context, res *model.Reservation, seat *model.Seat, userID uint64, expiresAt time.Time) error {
	if err := s.seats.UpdateHold(ctx, seat.ID, userID, expiresAt); err != nil {
		return err
	}
	if err := s.store.Set(ctx, cache.HoldOwnerKey(res.ScheduleID, seat.ID), formatID(userID), s.holdTTL); err != nil {
		return err
	}
	grade, err := s.priceGrades.GetByID(ctx, seat.PriceGradeID)
	if err != nil {
		return err
	}
	if err := s.heldSeats.Create(ctx, &model.HeldSeat{
		ReservationID: res.ID,
		SeatID:        seat.ID,
		Price:         grade.Price,
	}); err != nil {
		return err
	}
	s.bus.Publish(ctx, event.SeatHoldCompleted{
		ScheduleID: res.ScheduleID,
		SeatID:     seat.ID,
		UserID:     userID,
		Status:     model.SeatHold,
		HoldTTL:    s.holdTTL,
		ExpiresAt:  expiresAt,
	})
	return nil
}

// rollback compensates the seats committed earlier in an aborted batch.
// Failures are logged and skipped; the sweep and lazy reconciliation
// will finish the job.
func (s *SeatHoldService) rollback(ctx context.Context, res *model.Reservation, committed []uint64) {
	for i := len(committed) - 1; i >= 0; i-- {
		seatID := committed[i]
		release, err := s.locker.Acquire(ctx, res.ScheduleID, seatID)
		if err != nil {
			log.Printf("[SeatHold] rollback lock failed - reservationId=%d seatId=%d: %v", res.ID, seatID, err)
			continue
		}
		if err := s.seats.ClearHold(ctx, seatID); err != nil {
			log.Printf("[SeatHold] rollback clear failed - reservationId=%d seatId=%d: %v", res.ID, seatID, err)
			release()
			continue
		}
		if err := s.store.Del(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID)); err != nil {
			log.Printf("[SeatHold] rollback owner key del failed - seatId=%d: %v", seatID, err)
		}
		if err := s.heldSeats.Delete(ctx, res.ID, []uint64{seatID}); err != nil {
			log.Printf("[SeatHold] rollback held seat del failed - seatId=%d: %v", seatID, err)
		}
		s.bus.Publish(ctx, event.SeatReleaseCompleted{
			ScheduleID: res.ScheduleID,
			SeatID:     seatID,
			UserID:     res.UserID,
			Status:     model.SeatAvailable,
		})
		release()
	}
}

// ReleaseSeats gives back a subset of the reservation's held seats.
// Releasing is allowed even after the hold window lapsed; releasing the
// last seat cancels the reservation.
func (s *SeatHoldService) ReleaseSeats(ctx context.Context, reservationID uint64, seatIDs []uint64, userID uint64) (*ReleaseResult, error) {
	seatIDs = dedupeIDs(seatIDs)
	res, err := s.loadGuardedReservation(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}

	var released []uint64
	for _, seatID := range seatIDs {
		held, err := s.heldSeats.Exists(ctx, reservationID, seatID)
		if err != nil {
			return nil, err
		}
		if !held {
			continue
		}
		if err := s.releaseOne(ctx, res, seatID, userID); err != nil {
			return nil, err
		}
		released = append(released, seatID)
	}

	if err := s.heldSeats.Delete(ctx, reservationID, released); err != nil {
		return nil, err
	}
	remaining, err := s.heldSeats.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if len(released) == 0 && len(remaining) == 0 {
		return nil, ErrNoSeatsReserved
	}
	total := 0
	for _, hs := range remaining {
		total += hs.Price
	}

	result := &ReleaseResult{
		ReservationID:    reservationID,
		ReleasedSeatIDs:  released,
		RemainingSeatCnt: len(remaining),
		TotalAmount:      total,
	}
	if len(remaining) == 0 {
		if err := s.reservations.MarkCancelled(ctx, reservationID, time.Now().UTC()); err != nil {
			return nil, err
		}
		result.Status = model.ReservationCancelled
	} else {
		if err := s.reservations.UpdateStatusTotals(ctx, reservationID, model.ReservationHold, total, res.ExpiresAt); err != nil {
			return nil, err
		}
		result.Status = model.ReservationHold
		result.ExpiresAt = res.ExpiresAt
		if res.ExpiresAt != nil {
			result.RemainingSeconds = int64(time.Until(*res.ExpiresAt).Seconds())
		}
	}
	log.Printf("[SeatHold] released - reservationId=%d seats=%d remaining=%d", reservationID, len(released), len(remaining))
	return result, nil
}

func (s *SeatHoldService) releaseOne(ctx context.Context, res *model.Reservation, seatID, userID uint64) error {
	release, err := s.locker.Acquire(ctx, res.ScheduleID, seatID)
	if err != nil {
		return err
	}
	defer release()

	owner, ok, err := s.store.Get(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID))
	if err != nil {
		return err
	}
	if ok && owner != formatID(userID) {
		return ErrUnauthorized
	}
	if err := s.store.Del(ctx, cache.HoldOwnerKey(res.ScheduleID, seatID)); err != nil {
		return err
	}

	seat, err := s.seats.GetByIDAndSchedule(ctx, seatID, res.ScheduleID)
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return ErrSeatNotFound
		}
		return err
	}
	if seat.Status == model.SeatSold {
		// paid out from under us; nothing to give back
		return nil
	}
	if err := s.seats.ClearHold(ctx, seatID); err != nil {
		return err
	}
	s.bus.Publish(ctx, event.SeatReleaseCompleted{
		ScheduleID: res.ScheduleID,
		SeatID:     seatID,
		UserID:     userID,
		Status:     model.SeatAvailable,
	})
	return nil
}

// GetSeatChanges returns the delta feed page after sinceVersion.
func (s *SeatHoldService) GetSeatChanges(ctx context.Context, scheduleID, sinceVersion uint64) (*SeatChanges, error) {
	events, version, refresh, err := s.feed.Since(ctx, scheduleID, sinceVersion)
	if err != nil {
		return nil, err
	}
	return &SeatChanges{Events: events, Version: version, RefreshRequired: refresh}, nil
}

// loadGuardedReservation applies the guards shared by hold and release:
// existence, ownership, and terminal statuses.
func (s *SeatHoldService) loadGuardedReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
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
	switch res.Status {
	case model.ReservationPaid:
		return nil, ErrAlreadyPaid
	case model.ReservationCancelled:
		return nil, ErrInvalidReservationStatus
	}
	return res, nil
}

// expireSeatLocked lazily reconciles one expired hold while its lock is
// already held.
func (s *SeatHoldService) expireSeatLocked(ctx context.Context, scheduleID uint64, seat *model.Seat) error {
	if err := s.seats.ClearHold(ctx, seat.ID); err != nil {
		return err
	}
	if err := s.store.Del(ctx, cache.HoldOwnerKey(scheduleID, seat.ID)); err != nil {
		return err
	}
	s.bus.Publish(ctx, event.SeatReleaseCompleted{
		ScheduleID: scheduleID,
		SeatID:     seat.ID,
		Status:     model.SeatAvailable,
	})
	return nil
}

func (s *SeatHoldService) describeHeldSeats(ctx context.Context, rows []model.HeldSeat) ([]HeldSeatInfo, error) {
	ids := make([]uint64, 0, len(rows))
	priceBySeat := make(map[uint64]int, len(rows))
	for _, hs := range rows {
		ids = append(ids, hs.SeatID)
		priceBySeat[hs.SeatID] = hs.Price
	}
	seats, err := s.seats.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	seatByID := make(map[uint64]model.Seat, len(seats))
	for _, st := range seats {
		seatByID[st.ID] = st
	}

	infos := make([]HeldSeatInfo, 0, len(rows))
	for _, hs := range rows {
		seat, ok := seatByID[hs.SeatID]
		if !ok {
			continue
		}
		grade, err := s.priceGrades.GetByID(ctx, seat.PriceGradeID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, HeldSeatInfo{
			SeatID:     seat.ID,
			Block:      seat.Block,
			RowNumber:  seat.RowNumber,
			SeatNumber: seat.SeatNumber,
			GradeName:  grade.Name,
			Price:      priceBySeat[hs.SeatID],
		})
	}
	return infos, nil
}

// bestEffortStatus reads the seat status for a conflict payload without
// the lock; it may be slightly stale.
func (s *SeatHoldService) bestEffortStatus(ctx context.Context, scheduleID, seatID uint64) string {
	seat, err := s.seats.GetByIDAndSchedule(ctx, seatID, scheduleID)
	if err != nil {
		return model.SeatHold
	}
	return seat.Status
}

func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func countNewSeats(existing []model.HeldSeat, requested []uint64) int {
	held := make(map[uint64]struct{}, len(existing))
	for _, hs := range existing {
		held[hs.SeatID] = struct{}{}
	}
	n := 0
	for _, id := range requested {
		if _, ok := held[id]; !ok {
			n++
		}
	}
	return n
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
