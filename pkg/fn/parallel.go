package fn

import (
	"context"
	"sync"
)

// ParMap applies f to each item with at most workers goroutines in flight.
// Output slot i always holds f's result for items[i], whatever the completion
// order. workers <= 0 means one goroutine per item.
func ParMap[T, U any](ctx context.Context, items []T, workers int, f func(ctx context.Context, i int, item T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(ctx, i, v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// ParMapResult is ParMap for fallible work. Each slot resolves independently;
// one failure never cancels its siblings.
func ParMapResult[T, U any](ctx context.Context, items []T, workers int, f func(ctx context.Context, i int, item T) Result[U]) []Result[U] {
	return ParMap(ctx, items, workers, f)
}
