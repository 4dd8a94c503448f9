// Package concurrency runs small groups of independent lookups side by side.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Task is one lookup. It must return promptly once ctx is cancelled.
type Task func(ctx context.Context) error

// All runs every task with at most limit in flight. The first failure cancels the
// context the remaining tasks see, and only that error is returned. A nil task is skipped.
func All(ctx context.Context, limit int, tasks ...Task) error {
	if limit < 1 {
		limit = 1
	}
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(limit)
	for _, task := range tasks {
		if task == nil {
			continue
		}
		p.Go(task)
	}
	return p.Wait()
}
