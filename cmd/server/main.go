package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/stagegate/booking-core/internal/cache"
	"github.com/stagegate/booking-core/internal/config"
	"github.com/stagegate/booking-core/internal/database"
	"github.com/stagegate/booking-core/internal/event"
	"github.com/stagegate/booking-core/internal/handler"
	"github.com/stagegate/booking-core/internal/lock"
	"github.com/stagegate/booking-core/internal/queue"
	"github.com/stagegate/booking-core/internal/repository"
	"github.com/stagegate/booking-core/internal/router"
	"github.com/stagegate/booking-core/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql connect failed: %v", err)
	}
	defer db.Close()

	redisClient := config.NewRedisClient()
	if redisClient == nil {
		log.Fatal("redis connect failed")
	}
	store := cache.NewRedis(redisClient)
	feed := cache.NewChangeFeed(store, cfg.ChangeEventTTL)
	locker := lock.NewRedisLocker(redisClient, cfg.LockWait, cfg.LockLease)

	seatRepo := repository.NewMySQLSeatRepo(db)
	reservationRepo := repository.NewMySQLReservationRepo(db)
	heldSeatRepo := repository.NewMySQLHeldSeatRepo(db)
	priceGradeRepo := repository.NewMySQLPriceGradeRepo(db)
	scheduleRepo := repository.NewMySQLScheduleRepo(db)
	auditRepo := repository.NewMySQLHoldAuditRepo(db)

	// Post-commit listeners: change feed + audit trail always; broker
	// mirror only when configured.
	bus := event.NewInMemoryBus()
	recorder := event.NewRecorder(feed, auditRepo)
	bus.Subscribe(recorder.Handle)
	if cfg.AMQPURL != "" {
		bus.Subscribe(queue.NewForwarder(cfg.AMQPURL))
		go func() {
			if err := queue.StartSeatEventConsumer(cfg.AMQPURL); err != nil {
				log.Printf("seat-event-consumer stopped: %v", err)
			}
		}()
	}

	sessions := service.NewBookingSessionService(store, cfg.SessionTTL)
	holds := service.NewSeatHoldService(locker, store, feed, bus,
		seatRepo, reservationRepo, heldSeatRepo, priceGradeRepo, cfg.HoldTTL, cfg.MaxSeats)
	reservations := service.NewReservationService(store, bus, locker, sessions,
		reservationRepo, heldSeatRepo, seatRepo, scheduleRepo, cfg.CancelCutoff)

	sweeper := service.NewExpirySweeper(reservationRepo, reservations, cfg.SweepInterval, cfg.SweepBatch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e,
		handler.NewBookingSessionHandler(sessions),
		handler.NewReservationHandler(reservations, holds),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
