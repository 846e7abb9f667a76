package repository

import (
	"context"
	"database/sql"

	"github.com/stagegate/booking-core/internal/model"
)

// HoldAuditRepository appends to the seat hold audit trail. Writes are
// best-effort from the caller's perspective; the trail is diagnostic,
// not authoritative.
type HoldAuditRepository interface {
	Insert(ctx context.Context, a *model.HoldAudit) error
}

type MySQLHoldAuditRepo struct {
	db *sql.DB
}

func NewMySQLHoldAuditRepo(db *sql.DB) *MySQLHoldAuditRepo { return &MySQLHoldAuditRepo{db: db} }

func (r *MySQLHoldAuditRepo) Insert(ctx context.Context, a *model.HoldAudit) error {
	var expiry any
	if a.ExpiresAt != nil {
		expiry = a.ExpiresAt.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO seat_hold_logs (seat_id, user_id, action, expires_at) VALUES (?, ?, ?, ?)`,
		a.SeatID, a.UserID, a.Action, expiry)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}
