// Package cache holds the non-authoritative half of the booking state:
// booking sessions, per-schedule liveness, hold-owner keys, the sold
// set, admission records, and the versioned seat change feed. All of it
// lives behind the Store interface so the engine can run against Redis
// in production and against the in-memory store in tests.
package cache

import (
	"context"
	"time"
)

// Store is the subset of key/value, set, sorted-set and hash operations
// the booking core needs. A ttl of zero means no expiry.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets the key only if absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	// Incr atomically increments an integer key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZScore returns the member's score and whether it is present.
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZRem(ctx context.Context, key, member string) error
	// ZRangeByScoreBelow returns members with score <= max.
	ZRangeByScoreBelow(ctx context.Context, key string, max float64) ([]string, error)

	HDel(ctx context.Context, key string, fields ...string) error
}
