package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const acquirePollInterval = 100 * time.Millisecond

// RedisLocker implements SeatLocker with a SET NX lease. Each acquire
// writes a random token so a release can never drop a lock that has
// already expired and been re-acquired by someone else.
type RedisLocker struct {
	client *redis.Client
	wait   time.Duration // max time to spend trying to acquire
	lease  time.Duration // auto-expiry if the holder crashes
}

func NewRedisLocker(client *redis.Client, wait, lease time.Duration) *RedisLocker {
	return &RedisLocker{client: client, wait: wait, lease: lease}
}

func (l *RedisLocker) Acquire(ctx context.Context, scheduleID, seatID uint64) (func(), error) {
	key := seatLockKey(scheduleID, seatID)
	token, err := randomToken(16)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

// release deletes the lock only while it still holds our token. The
// lease may have expired and the key may belong to another holder.
func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	current, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return // lease already expired
	}
	if err != nil {
		log.Printf("[SeatLock] release read failed - key=%s: %v", key, err)
		return
	}
	if current != token {
		return // re-acquired by another holder after our lease lapsed
	}
	if err := l.client.Del(ctx, key).Err(); err != nil {
		log.Printf("[SeatLock] release delete failed - key=%s: %v", key, err)
	}
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
