package authz

import (
	"context"

	"github.com/pkg/errors"
)

type check struct {
	Name string
	Run  func(ctx context.Context) error
}

type checkResult struct {
	Index int
	Err   error
}

// firstFailure runs checks concurrently and returns as soon as the first failure is observed.
// The remaining checks are cancelled and not waited for, their results are discarded.
// Failures already completed when the first one is observed are treated as simultaneous,
// and the one listed first wins.
func firstFailure(ctx context.Context, checks []check) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan checkResult, len(checks))
	for i, c := range checks {
		go func() {
			results <- checkResult{Index: i, Err: c.Run(ctx)}
		}()
	}
	return collectFailure(ctx, results, len(checks))
}

func collectFailure(ctx context.Context, results <-chan checkResult, n int) error {
	for range n {
		r := <-results
		if r.Err == nil {
			continue
		}

		failures := make([]error, n)
		failures[r.Index] = r.Err
	drain:
		for {
			select {
			case r := <-results:
				if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
					failures[r.Index] = r.Err
				}
			default:
				break drain
			}
		}

		for _, f := range failures {
			if f != nil {
				return f
			}
		}
	}
	return errors.WithStack(ctx.Err())
}
