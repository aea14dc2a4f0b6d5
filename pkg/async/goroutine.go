package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Batch runs fn for every item on at most workers goroutines and waits for
// all of them. Each call gets its own timeout derived from ctx. A panicking
// call is recovered and reported as its error.
//
// The result holds one entry per item, in item order; nil means success.
//
// Example:
//
//	errs := async.Batch(ctx, orgs, 4, 30*time.Second, func(ctx context.Context, org *identity.Organization) error {
//	    return settle(ctx, org)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers <= 0 {
		workers = 1
	}
	errs := make([]error, len(items))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = run(ctx, timeout, func(ctx context.Context) error { return fn(ctx, item) })
		}(i, item)
	}

	wg.Wait()
	return errs
}

// run calls fn with a timeout and turns a panic into an error.
func run(parent context.Context, timeout time.Duration, fn func(context.Context) error) (err error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
