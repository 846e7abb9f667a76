package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	l := NewMemoryLocker(20*time.Millisecond, time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// a different seat is an independent lock
	release2, err := l.Acquire(ctx, 10, 2)
	require.NoError(t, err)
	release2()

	release()
	release3, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)
	release3()
}

func TestMemoryLockerWaitsForRelease(t *testing.T) {
	l := NewMemoryLocker(200*time.Millisecond, time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	// second acquire blocks until the first holder releases
	release2, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)
	release2()
}

func TestMemoryLockerLeaseExpiry(t *testing.T) {
	l := NewMemoryLocker(10*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	_, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)

	// the lease frees the lock even though the holder never released
	time.Sleep(50 * time.Millisecond)
	release, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)
	release()
}

func TestMemoryLockerStaleReleaseIsNoop(t *testing.T) {
	l := NewMemoryLocker(10*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	staleRelease, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)

	// lease expires, someone else takes the lock
	time.Sleep(40 * time.Millisecond)
	release2, err := l.Acquire(ctx, 10, 1)
	require.NoError(t, err)
	defer release2()

	// the first holder's late release must not drop the new owner's lock
	staleRelease()
	_, err = l.Acquire(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestMemoryLockerSerializesContenders(t *testing.T) {
	l := NewMemoryLocker(500*time.Millisecond, time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, 10, 1)
			if err != nil {
				return
			}
			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inSection--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInSection)
}

func TestMemoryLockerContextCancellation(t *testing.T) {
	l := NewMemoryLocker(time.Second, time.Second)
	release, err := l.Acquire(context.Background(), 10, 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = l.Acquire(ctx, 10, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
