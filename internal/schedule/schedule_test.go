package schedule_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/schedule"
)

func TestProcessInChunksPreservesOrder(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i * 10
	}
	for _, size := range []int{1, 2, 3, 7, 23, 50} {
		got, err := schedule.ProcessInChunks(context.Background(), items, size, 0,
			func(_ context.Context, _ int, item int) (int, error) {
				time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
				return item, nil
			}, nil)
		require.NoError(t, err)
		assert.Equal(t, items, got, "chunk size %d", size)
	}
}

func TestProcessInChunksBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]string, 9)
	var chunks []int
	_, err := schedule.ProcessInChunks(context.Background(), items, 2, time.Millisecond,
		func(context.Context, int, string) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}, func(done, total int) {
			assert.Equal(t, 9, total)
			chunks = append(chunks, done)
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, []int{2, 4, 6, 8, 9}, chunks)
}

func TestProcessInChunksStopsOnError(t *testing.T) {
	var calls atomic.Int32
	_, err := schedule.ProcessInChunks(context.Background(), []int{1, 2, 3, 4, 5, 6}, 2, 0,
		func(_ context.Context, index int, _ int) (int, error) {
			calls.Add(1)
			if index == 2 {
				return 0, errors.New("boom")
			}
			return index, nil
		}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 2")
	assert.LessOrEqual(t, calls.Load(), int32(4))
}

func TestProcessInChunksEmpty(t *testing.T) {
	got, err := schedule.ProcessInChunks(context.Background(), []int(nil), 3, 0,
		func(context.Context, int, int) (int, error) { return 0, nil }, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestYieldHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, schedule.Yield(ctx, time.Hour), context.Canceled)
	assert.NoError(t, schedule.Yield(context.Background(), 0))
	assert.NoError(t, schedule.Yield(context.Background(), time.Millisecond))
}
