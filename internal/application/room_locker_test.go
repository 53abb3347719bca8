package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoomLocker_Serializes(t *testing.T) {
	locker := NewLocalRoomLocker()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, []string{"room-b", "room-a"})
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
	assert.Empty(t, locker.locks, "解放後は参照が残らない")
}

func TestLocalRoomLocker_DisjointRoomsDoNotBlock(t *testing.T) {
	locker := NewLocalRoomLocker()
	ctx := context.Background()

	releaseA, err := locker.Lock(ctx, []string{"room-a"})
	require.NoError(t, err)
	defer releaseA(ctx)

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := locker.Lock(ctxB, []string{"room-b"})
	require.NoError(t, err)
	releaseB(ctx)
}

func TestLocalRoomLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalRoomLocker()
	ctx := context.Background()

	release, err := locker.Lock(ctx, []string{"room-a"})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, []string{"room-a", "room-c"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release(ctx)
	release(ctx)

	again, err := locker.Lock(ctx, []string{"room-c", "room-a"})
	require.NoError(t, err, "取得途中で諦めたロックは残らない")
	again(ctx)
	assert.Empty(t, locker.locks)
}
