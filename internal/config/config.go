package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Infrastructure settings are required;
// booking tunables default to the production values.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens
	AMQPURL   string // RabbitMQ connection URL (optional; empty disables the broker)

	HoldTTL        time.Duration // how long a seat hold lives
	SessionTTL     time.Duration // booking session lifetime
	LockWait       time.Duration // max wait to acquire one seat lock
	LockLease      time.Duration // seat lock lease before auto-expiry
	ChangeEventTTL time.Duration // per-event TTL on the seat change feed
	CancelCutoff   time.Duration // PAID cancellation cutoff before the schedule starts
	SweepInterval  time.Duration // expiry sweeper period
	SweepBatch     int           // max expired reservations per sweep pass
	MaxSeats       int           // max seats per reservation
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		AMQPURL:   getenv("RABBITMQ_URL", getenv("AMQP_URL", "")),

		HoldTTL:        parseDur(getenv("HOLD_TTL", "420s")),
		SessionTTL:     parseDur(getenv("BOOKING_SESSION_TTL", "30m")),
		LockWait:       parseDur(getenv("SEAT_LOCK_WAIT", "3s")),
		LockLease:      parseDur(getenv("SEAT_LOCK_LEASE", "5s")),
		ChangeEventTTL: parseDur(getenv("SEAT_CHANGE_TTL", "60s")),
		CancelCutoff:   parseDur(getenv("CANCEL_CUTOFF", "1h")),
		SweepInterval:  parseDur(getenv("EXPIRY_SWEEP_INTERVAL", "10s")),
		SweepBatch:     atoi(getenv("EXPIRY_SWEEP_BATCH", "100")),
		MaxSeats:       atoi(getenv("MAX_SEATS_PER_RESERVATION", "4")),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
