package fn

import (
	"context"
	"sync"
)

// ParMap applies f to every item using at most workers goroutines.
// Output order matches input order.
func ParMap[In, Out any](ctx context.Context, workers int, items []In, f func(context.Context, In) Out) []Out {
	if workers < 1 {
		workers = 1
	}
	out := make([]Out, len(items))
	idx := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				out[i] = f(ctx, items[i])
			}
		}()
	}

	for i := range items {
		select {
		case idx <- i:
		case <-ctx.Done():
			close(idx)
			wg.Wait()
			return out
		}
	}
	close(idx)
	wg.Wait()
	return out
}

// ParMapResult applies f in parallel and returns the first error
// encountered, or the ordered outputs if every item succeeded.
func ParMapResult[In, Out any](ctx context.Context, workers int, items []In, f func(context.Context, In) Result[Out]) ([]Out, error) {
	results := ParMap(ctx, workers, items, f)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Collect(results).Unwrap()
}
