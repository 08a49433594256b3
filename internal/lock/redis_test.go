package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ttl time.Duration) (*MatchLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	ml := newMatchLock(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	ml.retryWait = 5 * time.Millisecond
	t.Cleanup(func() { _ = ml.Close() })
	return ml, mr
}

func TestMatchLock_ExcludesUntilReleased(t *testing.T) {
	ml, mr := newTestLock(t, time.Minute)

	unlock, err := ml.Lock(t.Context(), "m1")
	require.NoError(t, err)
	require.True(t, mr.Exists(keyPrefix+"m1"))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = ml.Lock(ctx, "m1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := ml.Lock(t.Context(), "m2")
	require.NoError(t, err)
	other()

	unlock()
	require.False(t, mr.Exists(keyPrefix+"m1"))

	again, err := ml.Lock(t.Context(), "m1")
	require.NoError(t, err)
	again()
}

func TestMatchLock_WaiterAcquiresAfterRelease(t *testing.T) {
	ml, _ := newTestLock(t, time.Minute)

	unlock, err := ml.Lock(t.Context(), "m1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		u, err := ml.Lock(context.Background(), "m1")
		if err == nil {
			u()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lease")
	}
}

func TestMatchLock_LeaseExpires(t *testing.T) {
	ml, mr := newTestLock(t, time.Second)

	_, err := ml.Lock(t.Context(), "m1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := ml.Lock(t.Context(), "m1")
	require.NoError(t, err)
	unlock()
}

func TestMatchLock_ReleaseKeepsForeignLease(t *testing.T) {
	ml, mr := newTestLock(t, time.Minute)
	key := keyPrefix + "m1"

	require.NoError(t, mr.Set(key, "someone-else"))
	err := ml.release(t.Context(), key, "our-token")
	require.ErrorIs(t, err, ErrLockLost)

	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)

	require.NoError(t, ml.release(t.Context(), key, "someone-else"))
	require.False(t, mr.Exists(key))
}

func TestNewMatchLock(t *testing.T) {
	mr := miniredis.RunT(t)

	ml, err := NewMatchLock(t.Context(), "redis://"+mr.Addr()+"/0", time.Second)
	require.NoError(t, err)
	require.NoError(t, ml.Close())

	_, err = NewMatchLock(t.Context(), "not-a-url", time.Second)
	require.Error(t, err)
}

// Runs against a real server when MATCHSTATS_TEST_REDIS_URL is set, e.g.
// redis://localhost:6379/15.
func TestMatchLock_LiveServer(t *testing.T) {
	url := os.Getenv("MATCHSTATS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MATCHSTATS_TEST_REDIS_URL not set")
	}

	ml, err := NewMatchLock(t.Context(), url, 2*time.Second)
	require.NoError(t, err)
	defer ml.Close()

	key := uuid.NewString()
	unlock, err := ml.Lock(t.Context(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	_, err = ml.Lock(ctx, key)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	require.ErrorIs(t, ml.release(t.Context(), keyPrefix+key, "stale-token"), ErrLockLost)
}
