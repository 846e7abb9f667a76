package event

import (
	"context"
	"log"

	"github.com/stagegate/booking-core/internal/cache"
	"github.com/stagegate/booking-core/internal/model"
	"github.com/stagegate/booking-core/internal/repository"
)

// Recorder is the post-commit listener: it appends each seat event to
// the change feed and writes the hold audit trail. Failures are logged
// and swallowed - the store commit already happened, and the feed heals
// through its own TTLs and the full-refresh signal.
type Recorder struct {
	feed   *cache.ChangeFeed
	audits repository.HoldAuditRepository
}

func NewRecorder(feed *cache.ChangeFeed, audits repository.HoldAuditRepository) *Recorder {
	return &Recorder{feed: feed, audits: audits}
}

// Handle implements Listener.
func (r *Recorder) Handle(ctx context.Context, evt any) {
	switch e := evt.(type) {
	case SeatHoldCompleted:
		if _, err := r.feed.Append(ctx, e.ScheduleID, e.SeatID, e.Status, e.UserID); err != nil {
			log.Printf("[SeatHoldEvent] change feed append failed - seatId=%d: %v", e.SeatID, err)
		}
		expiresAt := e.ExpiresAt
		if err := r.audits.Insert(ctx, &model.HoldAudit{
			SeatID:    e.SeatID,
			UserID:    e.UserID,
			Action:    model.AuditHold,
			ExpiresAt: &expiresAt,
		}); err != nil {
			log.Printf("[SeatHoldEvent] audit insert failed - seatId=%d: %v", e.SeatID, err)
		}
	case SeatReleaseCompleted:
		if _, err := r.feed.Append(ctx, e.ScheduleID, e.SeatID, e.Status, e.UserID); err != nil {
			log.Printf("[SeatReleaseEvent] change feed append failed - seatId=%d: %v", e.SeatID, err)
		}
		if err := r.audits.Insert(ctx, &model.HoldAudit{
			SeatID: e.SeatID,
			UserID: e.UserID,
			Action: model.AuditRelease,
		}); err != nil {
			log.Printf("[SeatReleaseEvent] audit insert failed - seatId=%d: %v", e.SeatID, err)
		}
	case SeatSoldCompleted:
		if _, err := r.feed.Append(ctx, e.ScheduleID, e.SeatID, e.Status, 0); err != nil {
			log.Printf("[SeatSoldEvent] change feed append failed - seatId=%d: %v", e.SeatID, err)
		}
	}
}
