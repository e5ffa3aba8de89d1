package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// ForkJoin calls fn for every item with at most limit calls in flight and
// waits for all of them. Results keep input order. Each call writes only its
// own slot, so callers merge the returned slice on a single goroutine.
func ForkJoin[In any, Out any](ctx context.Context, items []In, limit int, fn func(context.Context, In) Out) []Out {
	out := make([]Out, len(items))
	if len(items) == 0 {
		return out
	}
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			out[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Batches splits items into consecutive batches of size, hands each to fn,
// and sleeps for pause between batches. It stops early only when ctx is
// cancelled during a pause.
func Batches[In any, Out any](ctx context.Context, items []In, size int, pause time.Duration, fn func(context.Context, []In) []Out) ([]Out, error) {
	if size <= 0 {
		size = len(items)
	}

	out := make([]Out, 0, len(items))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, fn(ctx, items[start:end])...)

		if end < len(items) {
			if err := Sleep(ctx, pause); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}

	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
