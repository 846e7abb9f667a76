package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stagegate/booking-core/internal/model"
)

// ReservationRepository persists the reservation aggregate.
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	// ExistsActive reports whether the user already has a PENDING or
	// HOLD reservation on the schedule.
	ExistsActive(ctx context.Context, userID, scheduleID uint64) (bool, error)
	// UpdateStatusTotals writes the engine-driven fields after a
	// hold/release batch. A nil expiresAt clears the deadline.
	UpdateStatusTotals(ctx context.Context, id uint64, status string, totalAmount int, expiresAt *time.Time) error
	UpdateDeliveryInfo(ctx context.Context, id uint64, method, name, phone, address, zipCode string) error
	MarkCancelled(ctx context.Context, id uint64, cancelledAt time.Time) error
	// FindExpiredHolds returns up to limit HOLD reservations whose
	// expiresAt has lapsed, oldest first.
	FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
}

// MySQLReservationRepo implements ReservationRepository on database/sql.
type MySQLReservationRepo struct {
	db *sql.DB
}

func NewMySQLReservationRepo(db *sql.DB) *MySQLReservationRepo {
	return &MySQLReservationRepo{db: db}
}

const reservationColumns = `id, user_id, schedule_id, status, total_amount, expires_at,
               delivery_method, recipient_name, recipient_phone, recipient_address, recipient_zip_code,
               cancelled_at, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r         model.Reservation
		expiresAt sql.NullTime
		method    sql.NullString
		name      sql.NullString
		phone     sql.NullString
		address   sql.NullString
		zipCode   sql.NullString
		cancelled sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.ScheduleID, &r.Status, &r.TotalAmount, &expiresAt,
		&method, &name, &phone, &address, &zipCode, &cancelled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ExpiresAt = &t
	}
	if method.Valid {
		r.DeliveryMethod = &method.String
	}
	if name.Valid {
		r.RecipientName = &name.String
	}
	if phone.Valid {
		r.RecipientPhone = &phone.String
	}
	if address.Valid {
		r.RecipientAddress = &address.String
	}
	if zipCode.Valid {
		r.RecipientZipCode = &zipCode.String
	}
	if cancelled.Valid {
		t := cancelled.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

func (repo *MySQLReservationRepo) Create(ctx context.Context, r *model.Reservation) error {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO reservations (user_id, schedule_id, status, total_amount) VALUES (?, ?, ?, ?)`,
		r.UserID, r.ScheduleID, r.Status, r.TotalAmount)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

func (repo *MySQLReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := repo.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return r, err
}

func (repo *MySQLReservationRepo) ExistsActive(ctx context.Context, userID, scheduleID uint64) (bool, error) {
	var one int
	err := repo.db.QueryRowContext(ctx,
		`SELECT 1 FROM reservations WHERE user_id = ? AND schedule_id = ? AND status IN (?, ?) LIMIT 1`,
		userID, scheduleID, model.ReservationPending, model.ReservationHold).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (repo *MySQLReservationRepo) UpdateStatusTotals(ctx context.Context, id uint64, status string, totalAmount int, expiresAt *time.Time) error {
	var expiry any
	if expiresAt != nil {
		expiry = expiresAt.UTC()
	}
	_, err := repo.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, total_amount = ?, expires_at = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
		status, totalAmount, expiry, id)
	return err
}

func (repo *MySQLReservationRepo) UpdateDeliveryInfo(ctx context.Context, id uint64, method, name, phone, address, zipCode string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE reservations SET delivery_method = ?, recipient_name = ?, recipient_phone = ?,
                recipient_address = ?, recipient_zip_code = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
		method, name, phone, address, zipCode, id)
	return err
}

func (repo *MySQLReservationRepo) MarkCancelled(ctx context.Context, id uint64, cancelledAt time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, cancelled_at = ?, expires_at = NULL, updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
		model.ReservationCancelled, cancelledAt.UTC(), id)
	return err
}

func (repo *MySQLReservationRepo) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
         ORDER BY expires_at ASC LIMIT ?`,
		model.ReservationHold, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
