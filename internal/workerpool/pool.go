// Package workerpool is the bounded fork-join executor used for git and
// docker compose subprocesses. Every submitted task is joined before a call
// returns; nothing runs in the background afterwards.
package workerpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many tasks of one fork-join run concurrently.
type Pool struct {
	limit int
}

// New returns a Pool running at most limit tasks at once. A limit below one
// means runtime.NumCPU().
func New(limit int) *Pool {
	if limit < 1 {
		limit = runtime.NumCPU()
	}
	return &Pool{limit: limit}
}

// Limit returns the concurrency bound.
func (p *Pool) Limit() int {
	return p.limit
}

// ForkJoin runs fn for every item and waits for all of them. Results keep the
// order of items. The first error is returned, but already started tasks are
// never cancelled: tasks not yet started when a failure happens still run.
func ForkJoin[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Outcome is the result of one task run by BestEffort.
type Outcome[T, R any] struct {
	Item   T
	Result R
	Err    error
}

// BestEffort runs fn for every item, waits for all of them and reports each
// outcome in item order. A failing task never affects its siblings.
func BestEffort[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[T, R] {
	outcomes := make([]Outcome[T, R], len(items))
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(ctx, item)
			outcomes[i] = Outcome[T, R]{Item: item, Result: r, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
