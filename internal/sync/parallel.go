package sync

import (
	"context"
	"fmt"
	gosync "sync"
)

// SettledResult holds the outcome of one item in an all-settled fan-out.
type SettledResult[T any] struct {
	Item T
	Err  error
}

// ForEachSettled processes items in parallel with the specified number of
// workers and waits for every item to settle. Unlike a fail-fast pool, one
// item's error or panic never cancels the others; a panic is recovered and
// reported as that item's error. Results preserve the input order.
func ForEachSettled[T any](
	ctx context.Context,
	items []T,
	workers int,
	process func(ctx context.Context, item T) error,
) []SettledResult[T] {
	if len(items) == 0 {
		return nil
	}

	workers = normalizeWorkers(workers, len(items))

	out := make([]SettledResult[T], len(items))
	jobs := make(chan int, len(items))

	var wg gosync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				out[idx] = SettledResult[T]{
					Item: items[idx],
					Err:  runSettled(ctx, items[idx], process),
				}
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

func runSettled[T any](ctx context.Context, item T, process func(ctx context.Context, item T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return process(ctx, item)
}

// normalizeWorkers ensures worker count is between 1 and item count.
func normalizeWorkers(workers, itemCount int) int {
	if workers < 1 {
		workers = 1
	}
	if workers > itemCount {
		workers = itemCount
	}
	return workers
}
