package service

import (
	"context"
	"sync"
	"time"

	"github.com/stagegate/booking-core/internal/model"
	"github.com/stagegate/booking-core/internal/repository"
)

// Map-backed fakes for the repository interfaces. They mimic the MySQL
// implementations closely enough for the engine's ordering and
// compensation logic to be exercised without a database.

type fakeSeatRepo struct {
	mu    sync.Mutex
	seats map[uint64]*model.Seat
}

func newFakeSeatRepo() *fakeSeatRepo {
	return &fakeSeatRepo{seats: make(map[uint64]*model.Seat)}
}

func (r *fakeSeatRepo) add(s model.Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := s
	r.seats[s.ID] = &copied
}

func (r *fakeSeatRepo) get(id uint64) model.Seat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.seats[id]
}

func (r *fakeSeatRepo) GetByIDAndSchedule(_ context.Context, seatID, scheduleID uint64) (*model.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[seatID]
	if !ok || s.ScheduleID != scheduleID {
		return nil, repository.ErrSeatNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSeatRepo) GetByIDs(_ context.Context, seatIDs []uint64) ([]model.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Seat
	for _, id := range seatIDs {
		if s, ok := r.seats[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSeatRepo) UpdateHold(_ context.Context, seatID, userID uint64, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seats[seatID]
	s.Status = model.SeatHold
	s.HoldUserID = &userID
	t := expiresAt
	s.HoldExpiresAt = &t
	return nil
}

func (r *fakeSeatRepo) ClearHold(_ context.Context, seatID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seats[seatID]
	s.Status = model.SeatAvailable
	s.HoldUserID = nil
	s.HoldExpiresAt = nil
	return nil
}

func (r *fakeSeatRepo) MarkSold(_ context.Context, seatIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range seatIDs {
		s := r.seats[id]
		s.Status = model.SeatSold
		s.HoldUserID = nil
		s.HoldExpiresAt = nil
	}
	return nil
}

func (r *fakeSeatRepo) RestoreAvailable(_ context.Context, seatIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range seatIDs {
		s := r.seats[id]
		s.Status = model.SeatAvailable
		s.HoldUserID = nil
		s.HoldExpiresAt = nil
	}
	return nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uint64]*model.Reservation
	nextID       uint64

	statusErr error // injected into UpdateStatusTotals
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uint64]*model.Reservation)}
}

func (r *fakeReservationRepo) add(res model.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := res
	r.reservations[res.ID] = &copied
	if res.ID > r.nextID {
		r.nextID = res.ID
	}
}

func (r *fakeReservationRepo) get(id uint64) model.Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.reservations[id]
}

func (r *fakeReservationRepo) Create(_ context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	res.ID = r.nextID
	copied := *res
	r.reservations[res.ID] = &copied
	return nil
}

func (r *fakeReservationRepo) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	copied := *res
	return &copied, nil
}

func (r *fakeReservationRepo) ExistsActive(_ context.Context, userID, scheduleID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.UserID == userID && res.ScheduleID == scheduleID &&
			(res.Status == model.ReservationPending || res.Status == model.ReservationHold) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReservationRepo) UpdateStatusTotals(_ context.Context, id uint64, status string, totalAmount int, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	res := r.reservations[id]
	res.Status = status
	res.TotalAmount = totalAmount
	res.ExpiresAt = expiresAt
	return nil
}

func (r *fakeReservationRepo) UpdateDeliveryInfo(_ context.Context, id uint64, method, name, phone, address, zipCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.reservations[id]
	res.DeliveryMethod = &method
	res.RecipientName = &name
	res.RecipientPhone = &phone
	res.RecipientAddress = &address
	res.RecipientZipCode = &zipCode
	return nil
}

func (r *fakeReservationRepo) MarkCancelled(_ context.Context, id uint64, cancelledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.reservations[id]
	res.Status = model.ReservationCancelled
	t := cancelledAt
	res.CancelledAt = &t
	res.ExpiresAt = nil
	return nil
}

func (r *fakeReservationRepo) FindExpiredHolds(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Reservation
	for _, res := range r.reservations {
		if res.Status == model.ReservationHold && res.ExpiresAt != nil && !res.ExpiresAt.After(now) {
			out = append(out, *res)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakeHeldSeatRepo struct {
	mu     sync.Mutex
	rows   []model.HeldSeat
	nextID uint64

	// listErr fires from ListByReservation after listOKs successful
	// calls, for exercising failure paths after a batch committed.
	listErr error
	listOKs int
}

func newFakeHeldSeatRepo() *fakeHeldSeatRepo { return &fakeHeldSeatRepo{} }

func (r *fakeHeldSeatRepo) Create(_ context.Context, hs *model.HeldSeat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	hs.ID = r.nextID
	r.rows = append(r.rows, *hs)
	return nil
}

func (r *fakeHeldSeatRepo) Exists(_ context.Context, reservationID, seatID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hs := range r.rows {
		if hs.ReservationID == reservationID && hs.SeatID == seatID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeHeldSeatRepo) ListByReservation(_ context.Context, reservationID uint64) ([]model.HeldSeat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		if r.listOKs == 0 {
			return nil, r.listErr
		}
		r.listOKs--
	}
	var out []model.HeldSeat
	for _, hs := range r.rows {
		if hs.ReservationID == reservationID {
			out = append(out, hs)
		}
	}
	return out, nil
}

func (r *fakeHeldSeatRepo) Delete(_ context.Context, reservationID uint64, seatIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		drop[id] = struct{}{}
	}
	kept := r.rows[:0]
	for _, hs := range r.rows {
		if hs.ReservationID == reservationID {
			if _, ok := drop[hs.SeatID]; ok {
				continue
			}
		}
		kept = append(kept, hs)
	}
	r.rows = kept
	return nil
}

func (r *fakeHeldSeatRepo) DeleteByReservation(_ context.Context, reservationID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, hs := range r.rows {
		if hs.ReservationID != reservationID {
			kept = append(kept, hs)
		}
	}
	r.rows = kept
	return nil
}

type fakePriceGradeRepo struct {
	grades map[uint64]model.PriceGrade
}

func newFakePriceGradeRepo(grades ...model.PriceGrade) *fakePriceGradeRepo {
	r := &fakePriceGradeRepo{grades: make(map[uint64]model.PriceGrade)}
	for _, g := range grades {
		r.grades[g.ID] = g
	}
	return r
}

func (r *fakePriceGradeRepo) GetByID(_ context.Context, id uint64) (*model.PriceGrade, error) {
	g, ok := r.grades[id]
	if !ok {
		return nil, repository.ErrPriceGradeNotFound
	}
	return &g, nil
}

type fakeScheduleRepo struct {
	schedules map[uint64]model.Schedule
}

func newFakeScheduleRepo(schedules ...model.Schedule) *fakeScheduleRepo {
	r := &fakeScheduleRepo{schedules: make(map[uint64]model.Schedule)}
	for _, s := range schedules {
		r.schedules[s.ID] = s
	}
	return r
}

func (r *fakeScheduleRepo) GetByID(_ context.Context, id uint64) (*model.Schedule, error) {
	s, ok := r.schedules[id]
	if !ok {
		return nil, repository.ErrScheduleNotFound
	}
	return &s, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	records []model.HoldAudit
}

func (r *fakeAuditRepo) Insert(_ context.Context, a *model.HoldAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uint64(len(r.records) + 1)
	r.records = append(r.records, *a)
	return nil
}

func (r *fakeAuditRepo) list() []model.HoldAudit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.HoldAudit, len(r.records))
	copy(out, r.records)
	return out
}
