package model

import "time"

// Schedule is one performance date/time. Only the fields the booking
// core needs are modeled; the performance catalog itself is owned by
// another service.
type Schedule struct {
	ID            uint64    // performance_schedules.id
	PerformanceID uint64    // performance_schedules.performance_id
	StartsAt      time.Time // performance_schedules.starts_at
	Status        string    // performance_schedules.status
}

// PriceGrade maps a seat class to its price. Looked up once at hold
// time to snapshot the price into the HeldSeat row.
type PriceGrade struct {
	ID            uint64 // price_grades.id
	PerformanceID uint64 // price_grades.performance_id
	Name          string // price_grades.name (e.g. VIP, R, S)
	Price         int    // price_grades.price
}
