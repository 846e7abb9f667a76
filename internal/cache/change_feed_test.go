package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/booking-core/internal/model"
)

func TestChangeFeedAppendAndSince(t *testing.T) {
	feed := NewChangeFeed(NewMemory(), time.Minute)
	ctx := context.Background()

	v1, err := feed.Append(ctx, 10, 1, model.SeatHold, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v1)
	v2, err := feed.Append(ctx, 10, 2, model.SeatHold, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v2)
	v3, err := feed.Append(ctx, 10, 1, model.SeatAvailable, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v3)

	events, version, refresh, err := feed.Since(ctx, 10, 0)
	require.NoError(t, err)
	assert.False(t, refresh)
	assert.EqualValues(t, 3, version)
	require.Len(t, events, 3)
	// oldest first, versions strictly increasing
	for i, e := range events {
		assert.EqualValues(t, i+1, e.Version)
	}
	assert.Equal(t, model.SeatAvailable, events[2].Status)

	// partial catch-up
	events, version, _, err = feed.Since(ctx, 10, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, version)
	require.Len(t, events, 1)
	assert.EqualValues(t, 3, events[0].Version)
}

func TestChangeFeedUpToDateCaller(t *testing.T) {
	feed := NewChangeFeed(NewMemory(), time.Minute)
	ctx := context.Background()

	_, err := feed.Append(ctx, 10, 1, model.SeatHold, 7)
	require.NoError(t, err)

	events, version, refresh, err := feed.Since(ctx, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.EqualValues(t, 1, version)
	assert.False(t, refresh)

	// ahead of the feed (stale schedule id on the client) is not an error
	events, version, refresh, err = feed.Since(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, refresh)
	assert.EqualValues(t, 1, version)
}

func TestChangeFeedNoEventsYet(t *testing.T) {
	feed := NewChangeFeed(NewMemory(), time.Minute)
	events, version, refresh, err := feed.Since(context.Background(), 10, 4)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.EqualValues(t, 4, version)
	assert.False(t, refresh)
}

func TestChangeFeedGapForcesFullRefresh(t *testing.T) {
	feed := NewChangeFeed(NewMemory(), time.Minute)
	ctx := context.Background()

	for i := 0; i < maxChangeBatch+5; i++ {
		_, err := feed.Append(ctx, 10, uint64(i%4+1), model.SeatHold, 7)
		require.NoError(t, err)
	}

	events, version, refresh, err := feed.Since(ctx, 10, 0)
	require.NoError(t, err)
	assert.True(t, refresh)
	assert.Empty(t, events)
	assert.EqualValues(t, maxChangeBatch+5, version)

	// inside the window the feed still serves deltas
	events, _, refresh, err = feed.Since(ctx, 10, uint64(maxChangeBatch-20))
	require.NoError(t, err)
	assert.False(t, refresh)
	assert.Len(t, events, 25)
}

func TestChangeFeedSkipsExpiredEvents(t *testing.T) {
	store := NewMemory()
	feed := NewChangeFeed(store, 10*time.Millisecond)
	ctx := context.Background()

	_, err := feed.Append(ctx, 10, 1, model.SeatHold, 7)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = feed.Append(ctx, 10, 2, model.SeatHold, 7)
	require.NoError(t, err)

	events, version, refresh, err := feed.Since(ctx, 10, 0)
	require.NoError(t, err)
	assert.False(t, refresh)
	assert.EqualValues(t, 2, version)
	require.Len(t, events, 1)
	assert.EqualValues(t, 2, events[0].SeatID)
}

func TestChangeFeedSchedulesAreIndependent(t *testing.T) {
	feed := NewChangeFeed(NewMemory(), time.Minute)
	ctx := context.Background()

	for schedule := uint64(1); schedule <= 3; schedule++ {
		for i := 0; i < int(schedule); i++ {
			_, err := feed.Append(ctx, schedule, uint64(i+1), model.SeatHold, 7)
			require.NoError(t, err)
		}
	}
	for schedule := uint64(1); schedule <= 3; schedule++ {
		events, version, _, err := feed.Since(ctx, schedule, 0)
		require.NoError(t, err, fmt.Sprintf("schedule %d", schedule))
		assert.EqualValues(t, schedule, version)
		assert.Len(t, events, int(schedule))
	}
}
