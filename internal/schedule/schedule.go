// Package schedule provides the cooperative bulk-work helpers the pipeline
// uses for per-slide and per-chunk processing.
package schedule

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Yield gives other goroutines a chance to run and, when d is positive, waits
// for d. It returns early with the context error when ctx is done.
func Yield(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ItemFunc processes one item; index is the item's position in the input.
type ItemFunc[T, R any] func(ctx context.Context, index int, item T) (R, error)

// ChunkDone is called after each chunk completes with the number of items
// processed so far.
type ChunkDone func(done, total int)

// ProcessInChunks partitions items into chunks of chunkSize, runs every item
// of a chunk concurrently, and yields for interChunkDelay before the next
// chunk. Results keep input order. The first item error cancels the rest of
// its chunk and stops processing.
func ProcessInChunks[T, R any](ctx context.Context, items []T, chunkSize int, interChunkDelay time.Duration, fn ItemFunc[T, R], onChunk ChunkDone) ([]R, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	results := make([]R, len(items))
	for start := 0; start < len(items); start += chunkSize {
		end := min(start+chunkSize, len(items))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				out, err := fn(gctx, i, items[i])
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if onChunk != nil {
			onChunk(end, len(items))
		}
		if end < len(items) {
			if err := Yield(ctx, interChunkDelay); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}
