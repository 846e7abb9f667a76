package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stagegate/booking-core/internal/model"
)

// HeldSeatRepository persists the reservation/seat join rows with their
// price snapshots.
type HeldSeatRepository interface {
	Create(ctx context.Context, hs *model.HeldSeat) error
	Exists(ctx context.Context, reservationID, seatID uint64) (bool, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.HeldSeat, error)
	Delete(ctx context.Context, reservationID uint64, seatIDs []uint64) error
	DeleteByReservation(ctx context.Context, reservationID uint64) error
}

// MySQLHeldSeatRepo implements HeldSeatRepository on database/sql.
type MySQLHeldSeatRepo struct {
	db *sql.DB
}

func NewMySQLHeldSeatRepo(db *sql.DB) *MySQLHeldSeatRepo { return &MySQLHeldSeatRepo{db: db} }

func (r *MySQLHeldSeatRepo) Create(ctx context.Context, hs *model.HeldSeat) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO held_seats (reservation_id, seat_id, price) VALUES (?, ?, ?)`,
		hs.ReservationID, hs.SeatID, hs.Price)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	hs.ID = uint64(id)
	return nil
}

func (r *MySQLHeldSeatRepo) Exists(ctx context.Context, reservationID, seatID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM held_seats WHERE reservation_id = ? AND seat_id = ? LIMIT 1`,
		reservationID, seatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MySQLHeldSeatRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.HeldSeat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, seat_id, price, created_at
         FROM held_seats WHERE reservation_id = ? ORDER BY id ASC`,
		reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HeldSeat
	for rows.Next() {
		var hs model.HeldSeat
		if err := rows.Scan(&hs.ID, &hs.ReservationID, &hs.SeatID, &hs.Price, &hs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

func (r *MySQLHeldSeatRepo) Delete(ctx context.Context, reservationID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `DELETE FROM held_seats WHERE reservation_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := append([]any{reservationID}, idArgs(seatIDs)...)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLHeldSeatRepo) DeleteByReservation(ctx context.Context, reservationID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM held_seats WHERE reservation_id = ?`, reservationID)
	return err
}
