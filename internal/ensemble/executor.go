package ensemble

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor calls fn once for every index in [0, n). Implementations decide
// how many calls run at the same time.
type Executor interface {
	Execute(ctx context.Context, n int, fn func(ctx context.Context, i int)) error
}

// Pool runs calls on at most Workers goroutines; zero means GOMAXPROCS.
type Pool struct {
	Workers int
}

func (p Pool) Execute(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		idx := i
		g.Go(func() error {
			fn(gctx, idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Sequential runs every call on the calling goroutine.
type Sequential struct{}

func (Sequential) Execute(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(ctx, i)
	}
	return nil
}
