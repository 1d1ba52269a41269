package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fork runs a and b concurrently and waits for both. The first error cancels
// the other branch's context and is returned; on error both results are zero.
func fork[A, B any](ctx context.Context, a func(context.Context) (A, error), b func(context.Context) (B, error)) (A, B, error) {
	var (
		ra A
		rb B
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ra, err = a(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rb, err = b(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		var za A
		var zb B
		return za, zb, err
	}
	return ra, rb, nil
}
