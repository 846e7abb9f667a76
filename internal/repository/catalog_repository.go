package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stagegate/booking-core/internal/model"
)

// ScheduleRepository reads performance schedules. The cancellation
// cutoff is computed from the schedule's start time.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.Schedule, error)
}

// PriceGradeRepository reads price grades for hold-time price
// snapshots.
type PriceGradeRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.PriceGrade, error)
}

type MySQLScheduleRepo struct {
	db *sql.DB
}

func NewMySQLScheduleRepo(db *sql.DB) *MySQLScheduleRepo { return &MySQLScheduleRepo{db: db} }

func (r *MySQLScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	var s model.Schedule
	err := r.db.QueryRowContext(ctx,
		`SELECT id, performance_id, starts_at, status FROM performance_schedules WHERE id = ?`,
		id).Scan(&s.ID, &s.PerformanceID, &s.StartsAt, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type MySQLPriceGradeRepo struct {
	db *sql.DB
}

func NewMySQLPriceGradeRepo(db *sql.DB) *MySQLPriceGradeRepo { return &MySQLPriceGradeRepo{db: db} }

func (r *MySQLPriceGradeRepo) GetByID(ctx context.Context, id uint64) (*model.PriceGrade, error) {
	var g model.PriceGrade
	err := r.db.QueryRowContext(ctx,
		`SELECT id, performance_id, name, price FROM price_grades WHERE id = ?`,
		id).Scan(&g.ID, &g.PerformanceID, &g.Name, &g.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPriceGradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
