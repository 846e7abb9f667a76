package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/stagegate/booking-core/internal/cache"
)

// waitingTokenLockTTL bounds the dedup lock around session creation so
// a crashed request cannot block the token forever.
const waitingTokenLockTTL = 10 * time.Second

// BookingSessionService exchanges queue admission tokens for booking
// sessions and maintains the per-schedule liveness set.
type BookingSessionService struct {
	store      cache.Store
	sessionTTL time.Duration
}

func NewBookingSessionService(store cache.Store, sessionTTL time.Duration) *BookingSessionService {
	return &BookingSessionService{store: store, sessionTTL: sessionTTL}
}

// BookingSession is the result of admission: either a freshly created
// session or the user's still-live one.
type BookingSession struct {
	SessionID  string `json:"sessionId"`
	ScheduleID uint64 `json:"scheduleId"`
	ExpiresIn  int64  `json:"expiresIn"` // seconds
	Reused     bool   `json:"reused"`
}

// CreateWithWaitingToken validates the admission chain (waiting token ->
// queue slot -> device) and resolves the user's session on the schedule:
// a live session on the same device is reused, a live session on a
// different device is rejected, and a lapsed session is torn down before
// a new one is created. The admission records are consumed on success.
func (s *BookingSessionService) CreateWithWaitingToken(ctx context.Context, userID, scheduleID uint64, deviceID, waitingToken string) (*BookingSession, error) {
	locked, err := s.store.SetNX(ctx, cache.WaitingLockKey(waitingToken), "1", waitingTokenLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDuplicateRequest
	}
	defer func() {
		if err := s.store.Del(context.WithoutCancel(ctx), cache.WaitingLockKey(waitingToken)); err != nil {
			log.Printf("[BookingSession] dedup lock release failed - token=%s: %v", waitingToken, err)
		}
	}()

	qsid, err := s.resolveWaitingToken(ctx, waitingToken, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDevice(ctx, qsid, deviceID); err != nil {
		return nil, err
	}

	existingID, ok, err := s.store.Get(ctx, cache.UserSessionKey(userID, scheduleID))
	if err != nil {
		return nil, err
	}
	if ok {
		_, live, err := s.store.ZScore(ctx, cache.ActiveKey(scheduleID), existingID)
		if err != nil {
			return nil, err
		}
		if live {
			existingDevice, _, err := s.store.Get(ctx, cache.SessionDeviceKey(existingID))
			if err != nil {
				return nil, err
			}
			if existingDevice != deviceID {
				return nil, ErrDeviceAlreadyUsed
			}
			if err := s.consumeAdmission(ctx, waitingToken, qsid, scheduleID, deviceID); err != nil {
				return nil, err
			}
			return &BookingSession{
				SessionID:  existingID,
				ScheduleID: scheduleID,
				ExpiresIn:  int64(s.sessionTTL.Seconds()),
				Reused:     true,
			}, nil
		}
		// lapsed session: tear down before issuing a fresh one
		if _, err := s.DeleteBySessionID(ctx, existingID); err != nil {
			return nil, err
		}
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	scheduleStr := strconv.FormatUint(scheduleID, 10)
	userStr := strconv.FormatUint(userID, 10)
	if err := s.store.Set(ctx, cache.SessionKey(sessionID), scheduleStr, s.sessionTTL); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, cache.SessionDeviceKey(sessionID), deviceID, s.sessionTTL); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, cache.SessionUserKey(sessionID), userStr, s.sessionTTL); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, cache.UserSessionKey(userID, scheduleID), sessionID, s.sessionTTL); err != nil {
		return nil, err
	}
	if err := s.store.ZAdd(ctx, cache.ActiveKey(scheduleID), sessionID, nowMillis()); err != nil {
		return nil, err
	}

	if err := s.consumeAdmission(ctx, waitingToken, qsid, scheduleID, deviceID); err != nil {
		return nil, err
	}

	log.Printf("[BookingSession] created - userId=%d scheduleId=%d sessionId=%s", userID, scheduleID, sessionID)
	return &BookingSession{
		SessionID:  sessionID,
		ScheduleID: scheduleID,
		ExpiresIn:  int64(s.sessionTTL.Seconds()),
	}, nil
}

// resolveWaitingToken maps the token to its queue slot and checks the
// schedule binding.
func (s *BookingSessionService) resolveWaitingToken(ctx context.Context, token string, scheduleID uint64) (string, error) {
	val, ok, err := s.store.Get(ctx, cache.WaitingKey(token))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidWaitingToken
	}
	qsid, tokenSchedule, err := splitPair(val)
	if err != nil {
		return "", fmt.Errorf("malformed waiting token record %q: %w", val, err)
	}
	if tokenSchedule != scheduleID {
		return "", ErrScheduleMismatch
	}
	return qsid, nil
}

// checkDevice verifies the queue slot is alive and bound to the calling
// device.
func (s *BookingSessionService) checkDevice(ctx context.Context, qsid, deviceID string) error {
	val, ok, err := s.store.Get(ctx, cache.QueueSlotKey(qsid))
	if err != nil {
		return err
	}
	if !ok {
		return ErrQueueSlotExpired
	}
	slotDevice, _, err := splitPair(val)
	if err != nil {
		return fmt.Errorf("malformed queue slot record %q: %w", val, err)
	}
	if slotDevice != deviceID {
		return ErrDeviceMismatch
	}
	return nil
}

// consumeAdmission burns the single-use admission records so the token
// chain cannot be replayed.
func (s *BookingSessionService) consumeAdmission(ctx context.Context, token, qsid string, scheduleID uint64, deviceID string) error {
	if err := s.store.Del(ctx, cache.WaitingKey(token), cache.QueueSlotKey(qsid), cache.DeviceKey(scheduleID, deviceID)); err != nil {
		return err
	}
	return s.store.HDel(ctx, cache.AdmittedKey(scheduleID), deviceID)
}

// Ping refreshes the session's heartbeat in the active set.
func (s *BookingSessionService) Ping(ctx context.Context, scheduleID uint64, sessionID string) error {
	_, live, err := s.store.ZScore(ctx, cache.ActiveKey(scheduleID), sessionID)
	if err != nil {
		return err
	}
	if !live {
		return ErrNotInActive
	}
	return s.store.ZAdd(ctx, cache.ActiveKey(scheduleID), sessionID, nowMillis())
}

// LeaveActive removes the session from the schedule's active set
// without destroying its keys; the seat-map page calls this when the
// user navigates away.
func (s *BookingSessionService) LeaveActive(ctx context.Context, scheduleID uint64, sessionID string) error {
	return s.store.ZRem(ctx, cache.ActiveKey(scheduleID), sessionID)
}

// ValidateExists checks the session is still live without binding it to
// a schedule.
func (s *BookingSessionService) ValidateExists(ctx context.Context, sessionID string) error {
	_, ok, err := s.store.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookingSessionExpired
	}
	return nil
}

// Expire force-ends a session before its TTL lapses. Expiring a session
// that is already gone is a no-op.
func (s *BookingSessionService) Expire(ctx context.Context, sessionID string) error {
	_, err := s.DeleteBySessionID(ctx, sessionID)
	return err
}

// DeleteBySessionID tears a session fully down. The session keys are
// self-describing, so the schedule and user are read back from them.
// Returns false if the session was already gone.
func (s *BookingSessionService) DeleteBySessionID(ctx context.Context, sessionID string) (bool, error) {
	scheduleStr, ok, err := s.store.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	scheduleID, err := strconv.ParseUint(scheduleStr, 10, 64)
	if err != nil {
		return false, fmt.Errorf("malformed session record %q: %w", scheduleStr, err)
	}

	keys := []string{cache.SessionKey(sessionID), cache.SessionDeviceKey(sessionID), cache.SessionUserKey(sessionID)}
	if userStr, ok, err := s.store.Get(ctx, cache.SessionUserKey(sessionID)); err != nil {
		return false, err
	} else if ok {
		if userID, err := strconv.ParseUint(userStr, 10, 64); err == nil {
			keys = append(keys, cache.UserSessionKey(userID, scheduleID))
		}
	}
	if err := s.store.Del(ctx, keys...); err != nil {
		return false, err
	}
	if err := s.store.ZRem(ctx, cache.ActiveKey(scheduleID), sessionID); err != nil {
		return false, err
	}
	log.Printf("[BookingSession] deleted - sessionId=%s scheduleId=%d", sessionID, scheduleID)
	return true, nil
}

// ValidateForSchedule checks the session exists and is bound to the
// given schedule, returning its user id.
func (s *BookingSessionService) ValidateForSchedule(ctx context.Context, sessionID string, scheduleID uint64) (uint64, error) {
	scheduleStr, ok, err := s.store.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBookingSessionExpired
	}
	bound, err := strconv.ParseUint(scheduleStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed session record %q: %w", scheduleStr, err)
	}
	if bound != scheduleID {
		return 0, ErrSessionScheduleMismatch
	}
	userStr, ok, err := s.store.Get(ctx, cache.SessionUserKey(sessionID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrInvalidBookingSession
	}
	userID, err := strconv.ParseUint(userStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed session user record %q: %w", userStr, err)
	}
	return userID, nil
}

// splitPair parses the "left:right" records the queue service writes,
// where right is a schedule id or similar numeric suffix.
func splitPair(val string) (string, uint64, error) {
	idx := strings.LastIndex(val, ":")
	if idx <= 0 || idx == len(val)-1 {
		return "", 0, fmt.Errorf("expected left:right, got %q", val)
	}
	right, err := strconv.ParseUint(val[idx+1:], 10, 64)
	if err != nil {
		return "", 0, err
	}
	return val[:idx], right, nil
}

func nowMillis() float64 { return float64(time.Now().UnixMilli()) }

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
