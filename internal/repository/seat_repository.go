package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/stagegate/booking-core/internal/model"
)

// SeatRepository is the authoritative store for performance seats. The
// caller must hold the seat's distributed lock around every mutation.
type SeatRepository interface {
	GetByIDAndSchedule(ctx context.Context, seatID, scheduleID uint64) (*model.Seat, error)
	GetByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
	// UpdateHold sets status=HOLD with the owning user and deadline.
	UpdateHold(ctx context.Context, seatID, userID uint64, expiresAt time.Time) error
	// ClearHold restores status=AVAILABLE and clears the hold columns.
	ClearHold(ctx context.Context, seatID uint64) error
	// MarkSold transitions the seats to SOLD and clears hold columns.
	MarkSold(ctx context.Context, seatIDs []uint64) error
	// RestoreAvailable transitions the seats to AVAILABLE regardless of
	// their current status. Used by PAID cancellation.
	RestoreAvailable(ctx context.Context, seatIDs []uint64) error
}

// MySQLSeatRepo implements SeatRepository on database/sql.
type MySQLSeatRepo struct {
	db *sql.DB
}

func NewMySQLSeatRepo(db *sql.DB) *MySQLSeatRepo { return &MySQLSeatRepo{db: db} }

// row_number is a reserved word since MySQL 8.0 and must stay quoted.
const seatColumns = "id, schedule_id, price_grade_id, block, `row_number`, seat_number, " +
	"status, hold_user_id, hold_expires_at, created_at, updated_at"

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var (
		s          model.Seat
		holdUser   sql.NullInt64
		holdExpiry sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ScheduleID, &s.PriceGradeID, &s.Block, &s.RowNumber,
		&s.SeatNumber, &s.Status, &holdUser, &holdExpiry, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if holdUser.Valid {
		u := uint64(holdUser.Int64)
		s.HoldUserID = &u
	}
	if holdExpiry.Valid {
		t := holdExpiry.Time
		s.HoldExpiresAt = &t
	}
	return &s, nil
}

func (r *MySQLSeatRepo) GetByIDAndSchedule(ctx context.Context, seatID, scheduleID uint64) (*model.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM performance_seats WHERE id = ? AND schedule_id = ?`,
		seatID, scheduleID)
	seat, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	return seat, err
}

func (r *MySQLSeatRepo) GetByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + seatColumns + ` FROM performance_seats WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, query, idArgs(seatIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

func (r *MySQLSeatRepo) UpdateHold(ctx context.Context, seatID, userID uint64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE performance_seats SET status = ?, hold_user_id = ?, hold_expires_at = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
		model.SeatHold, userID, expiresAt.UTC(), seatID)
	return err
}

func (r *MySQLSeatRepo) ClearHold(ctx context.Context, seatID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE performance_seats SET status = ?, hold_user_id = NULL, hold_expires_at = NULL, updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
		model.SeatAvailable, seatID)
	return err
}

func (r *MySQLSeatRepo) MarkSold(ctx context.Context, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `UPDATE performance_seats SET status = ?, hold_user_id = NULL, hold_expires_at = NULL, updated_at = UTC_TIMESTAMP()
              WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	args := append([]any{model.SeatSold}, idArgs(seatIDs)...)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLSeatRepo) RestoreAvailable(ctx context.Context, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `UPDATE performance_seats SET status = ?, hold_user_id = NULL, hold_expires_at = NULL, updated_at = UTC_TIMESTAMP()
              WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	args := append([]any{model.SeatAvailable}, idArgs(seatIDs)...)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// placeholders builds "?,?,?" for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
