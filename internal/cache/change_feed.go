package cache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/stagegate/booking-core/internal/model"
)

// maxChangeBatch bounds one poll. A client further behind than this is
// told to refetch the full seat map instead of replaying the feed.
const maxChangeBatch = 100

// ChangeFeed is the per-schedule, monotonically versioned log of seat
// status transitions. Versions come from an INCR counter; each event is
// stored under its own key with a short TTL, so the feed is an
// accelerant for polling clients, not a durable history.
type ChangeFeed struct {
	store    Store
	eventTTL time.Duration
}

func NewChangeFeed(store Store, eventTTL time.Duration) *ChangeFeed {
	return &ChangeFeed{store: store, eventTTL: eventTTL}
}

type changeEventPayload struct {
	SeatID    uint64 `json:"seatId"`
	Status    string `json:"status"`
	UserID    uint64 `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// Append records a seat status transition and returns the new version.
// Published events are never rewritten; a version is consumed even if
// the event body fails to store.
func (f *ChangeFeed) Append(ctx context.Context, scheduleID, seatID uint64, status string, userID uint64) (uint64, error) {
	v, err := f.store.Incr(ctx, VersionKey(scheduleID))
	if err != nil {
		return 0, err
	}
	version := uint64(v)

	body, err := json.Marshal(changeEventPayload{
		SeatID:    seatID,
		Status:    status,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return version, err
	}
	if err := f.store.Set(ctx, ChangesKey(scheduleID, version), string(body), f.eventTTL); err != nil {
		return version, err
	}
	return version, nil
}

// Since returns the events with version > sinceVersion, oldest first,
// capped at maxChangeBatch. refreshRequired is set when the caller is
// too far behind to catch up from the feed (expired or over-gap) and
// should refetch the full seat map.
func (f *ChangeFeed) Since(ctx context.Context, scheduleID, sinceVersion uint64) (events []model.SeatChangeEvent, currentVersion uint64, refreshRequired bool, err error) {
	raw, ok, err := f.store.Get(ctx, VersionKey(scheduleID))
	if err != nil {
		return nil, 0, false, err
	}
	if !ok {
		return nil, sinceVersion, false, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, 0, false, err
	}
	currentVersion = parsed
	if sinceVersion >= currentVersion {
		return nil, currentVersion, false, nil
	}

	if currentVersion-sinceVersion > maxChangeBatch {
		log.Printf("[SeatChange] version gap too large - scheduleId=%d since=%d current=%d",
			scheduleID, sinceVersion, currentVersion)
		return nil, currentVersion, true, nil
	}

	for v := sinceVersion + 1; v <= currentVersion; v++ {
		body, ok, err := f.store.Get(ctx, ChangesKey(scheduleID, v))
		if err != nil {
			return nil, 0, false, err
		}
		if !ok {
			// event TTL expired; skip
			continue
		}
		var payload changeEventPayload
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			log.Printf("[SeatChange] bad event payload - scheduleId=%d version=%d: %v", scheduleID, v, err)
			continue
		}
		events = append(events, model.SeatChangeEvent{
			SeatID:    payload.SeatID,
			Status:    payload.Status,
			UserID:    payload.UserID,
			Version:   v,
			Timestamp: payload.Timestamp,
		})
	}
	return events, currentVersion, false, nil
}
