package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerializesHolders(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "checkout:cart:1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn
	go func() {
		defer wg.Done()
		_ = locker.WithLock(ctx, "checkout:cart:1", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(releaseFirst)
	wg.Wait()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("checkout:cart:2", "someone-else"))

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "checkout:cart:2", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)

	got, err := mr.Get("checkout:cart:2")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "checkout:cart:3", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("checkout:cart:3"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("checkout:cart:3"))
}

func TestWithLockDoesNotReleaseForeignToken(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}

	err := locker.WithLock(context.Background(), "checkout:cart:4", time.Second, func(context.Context) error {
		// Simulate expiry followed by another holder taking over.
		mr.Del("checkout:cart:4")
		return mr.Set("checkout:cart:4", "other-holder")
	})
	require.NoError(t, err)
	got, err := mr.Get("checkout:cart:4")
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}
