package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/booking-core/internal/cache"
)

type sessionFixture struct {
	store *cache.Memory
	svc   *BookingSessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := cache.NewMemory()
	return &sessionFixture{
		store: store,
		svc:   NewBookingSessionService(store, 30*time.Minute),
	}
}

// admit seeds the records the queue service would have written for an
// admitted device.
func (f *sessionFixture) admit(t *testing.T, token, qsid, deviceID string, scheduleID uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, cache.WaitingKey(token), fmt.Sprintf("%s:%d", qsid, scheduleID), time.Minute))
	require.NoError(t, f.store.Set(ctx, cache.QueueSlotKey(qsid), fmt.Sprintf("%s:%d", deviceID, scheduleID), time.Minute))
}

func TestCreateSessionWithValidAdmission(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)

	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, testScheduleID, session.ScheduleID)
	assert.False(t, session.Reused)
	assert.EqualValues(t, 1800, session.ExpiresIn)

	// session keys exist and the session is live
	schedule, ok, err := f.store.Get(ctx, cache.SessionKey(session.SessionID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10", schedule)
	_, live, err := f.store.ZScore(ctx, cache.ActiveKey(testScheduleID), session.SessionID)
	require.NoError(t, err)
	assert.True(t, live)

	// the admission chain was consumed
	_, ok, err = f.store.Get(ctx, cache.WaitingKey("tok-1"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.store.Get(ctx, cache.QueueSlotKey("q-1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateSessionAdmissionChainFailures(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "missing")
	assert.ErrorIs(t, err, ErrInvalidWaitingToken)

	// token bound to another schedule
	f.admit(t, "tok-2", "q-2", "dev-1", 99)
	_, err = f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-2")
	assert.ErrorIs(t, err, ErrScheduleMismatch)

	// queue slot gone
	require.NoError(t, f.store.Set(ctx, cache.WaitingKey("tok-3"), fmt.Sprintf("q-3:%d", testScheduleID), time.Minute))
	_, err = f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-3")
	assert.ErrorIs(t, err, ErrQueueSlotExpired)

	// admitted on a different device
	f.admit(t, "tok-4", "q-4", "dev-other", testScheduleID)
	_, err = f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-4")
	assert.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestCreateSessionDuplicateRequestRejected(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)

	// a concurrent request holds the dedup lock
	require.NoError(t, f.store.Set(ctx, cache.WaitingLockKey("tok-1"), "1", time.Minute))
	_, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestCreateSessionReusesLiveSessionOnSameDevice(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	first, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	f.admit(t, "tok-2", "q-2", "dev-1", testScheduleID)
	second, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-2")
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestCreateSessionRejectsLiveSessionOnOtherDevice(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	_, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	f.admit(t, "tok-2", "q-2", "dev-2", testScheduleID)
	_, err = f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-2", "tok-2")
	assert.ErrorIs(t, err, ErrDeviceAlreadyUsed)
}

func TestCreateSessionTearsDownLapsedSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	first, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	// the session fell out of the active set (missed heartbeats)
	require.NoError(t, f.store.ZRem(ctx, cache.ActiveKey(testScheduleID), first.SessionID))

	f.admit(t, "tok-2", "q-2", "dev-2", testScheduleID)
	second, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-2", "tok-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// old session keys were destroyed
	_, ok, err := f.store.Get(ctx, cache.SessionKey(first.SessionID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPingRefreshesHeartbeat(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	before, _, err := f.store.ZScore(ctx, cache.ActiveKey(testScheduleID), session.SessionID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.svc.Ping(ctx, testScheduleID, session.SessionID))
	after, _, err := f.store.ZScore(ctx, cache.ActiveKey(testScheduleID), session.SessionID)
	require.NoError(t, err)
	assert.Greater(t, after, before)

	assert.ErrorIs(t, f.svc.Ping(ctx, testScheduleID, "ghost"), ErrNotInActive)
}

func TestLeaveActiveKeepsSessionKeys(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.LeaveActive(ctx, testScheduleID, session.SessionID))
	_, live, err := f.store.ZScore(ctx, cache.ActiveKey(testScheduleID), session.SessionID)
	require.NoError(t, err)
	assert.False(t, live)

	// keys survive a leave; only delete destroys them
	_, ok, err := f.store.Get(ctx, cache.SessionKey(session.SessionID))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteBySessionIDIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	deleted, err := f.svc.DeleteBySessionID(ctx, session.SessionID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.svc.DeleteBySessionID(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// reverse mapping is gone too, so a new session can be created
	_, ok, err := f.store.Get(ctx, cache.UserSessionKey(testUserID, testScheduleID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateExists(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	assert.NoError(t, f.svc.ValidateExists(ctx, session.SessionID))
	assert.ErrorIs(t, f.svc.ValidateExists(ctx, "ghost"), ErrBookingSessionExpired)
}

func TestExpireTearsDownSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Expire(ctx, session.SessionID))
	assert.ErrorIs(t, f.svc.ValidateExists(ctx, session.SessionID), ErrBookingSessionExpired)
	_, live, err := f.store.ZScore(ctx, cache.ActiveKey(testScheduleID), session.SessionID)
	require.NoError(t, err)
	assert.False(t, live)

	// expiring a session that is already gone is a no-op
	assert.NoError(t, f.svc.Expire(ctx, session.SessionID))
}

func TestValidateForSchedule(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.admit(t, "tok-1", "q-1", "dev-1", testScheduleID)
	session, err := f.svc.CreateWithWaitingToken(ctx, testUserID, testScheduleID, "dev-1", "tok-1")
	require.NoError(t, err)

	userID, err := f.svc.ValidateForSchedule(ctx, session.SessionID, testScheduleID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, userID)

	_, err = f.svc.ValidateForSchedule(ctx, session.SessionID, 99)
	assert.ErrorIs(t, err, ErrSessionScheduleMismatch)

	_, err = f.svc.ValidateForSchedule(ctx, "ghost", testScheduleID)
	assert.ErrorIs(t, err, ErrBookingSessionExpired)
}
