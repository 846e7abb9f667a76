package service

import (
	"context"
	"log"
	"time"

	"github.com/stagegate/booking-core/internal/repository"
)

// ExpirySweeper periodically cancels HOLD reservations whose window
// lapsed and returns their seats. Lazy reconciliation in the hold path
// covers the gap between a hold expiring and the sweep noticing it.
type ExpirySweeper struct {
	reservations repository.ReservationRepository
	expirer      *ReservationService
	interval     time.Duration
	batchSize    int
}

func NewExpirySweeper(reservations repository.ReservationRepository, expirer *ReservationService, interval time.Duration, batchSize int) *ExpirySweeper {
	return &ExpirySweeper{
		reservations: reservations,
		expirer:      expirer,
		interval:     interval,
		batchSize:    batchSize,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("[ExpirySweep] started - interval=%s batch=%d", s.interval, s.batchSize)
	for {
		select {
		case <-ctx.Done():
			log.Println("[ExpirySweep] stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *ExpirySweeper) sweepOnce(ctx context.Context) {
	expired, err := s.reservations.FindExpiredHolds(ctx, time.Now(), s.batchSize)
	if err != nil {
		log.Printf("[ExpirySweep] query failed: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	swept := 0
	for i := range expired {
		if err := s.expirer.ExpireReservationAndReleaseSeats(ctx, &expired[i]); err != nil {
			log.Printf("[ExpirySweep] expire failed - reservationId=%d: %v", expired[i].ID, err)
			continue
		}
		swept++
	}
	log.Printf("[ExpirySweep] pass done - expired=%d swept=%d", len(expired), swept)
}
