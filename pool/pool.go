package pool

import (
	"context"
	"runtime"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pool executes CPU-bound work on a bounded set of goroutines so connection loops are never blocked by it.
type Pool struct {
	pool *ants.Pool
}

// New creates new pool. If size is not positive, number of CPUs is used.
func New(size int, log *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		log.Error("Panic in worker pool", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Pool{pool: p}, nil
}

// Close releases pool workers.
func (p *Pool) Close() {
	p.pool.Release()
}

type result[T any] struct {
	Value T
	Err   error
}

// Run executes fn on the pool and waits for its result.
// Nil pool executes fn on the calling goroutine.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	if p == nil {
		return fn()
	}

	resCh := make(chan result[T], 1)
	if err := p.pool.Submit(func() {
		var res result[T]
		defer func() {
			if r := recover(); r != nil {
				res.Err = errors.Errorf("task panicked: %v", r)
			}
			resCh <- res
		}()
		res.Value, res.Err = fn()
	}); err != nil {
		var v T
		return v, errors.WithStack(err)
	}

	select {
	case <-ctx.Done():
		var v T
		return v, errors.WithStack(ctx.Err())
	case res := <-resCh:
		return res.Value, res.Err
	}
}
