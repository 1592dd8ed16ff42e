package digest

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// reduceStep describes one level of the reduce tree: how to summarize each leaf, how many leaves
// may run at once, and which call turns the merged digest into the level's own summary.
type reduceStep[T any] struct {
	leaves      []T
	leaf        func(ctx context.Context, i int, leaf T) (Summary, error)
	concurrency int
	rootShape   Shape
	rootPrompt  func(digest string) string
}

// reduceTree summarizes every leaf, merges the results in leaf order, and summarizes the digest.
// The returned root carries the merged sections and keywords in place of whatever the root call
// produced for them. leafSums are returned in leaf order for callers that need per-leaf detail.
func reduceTree[T any](ctx context.Context, level *LevelSummarizer, step reduceStep[T]) (root Summary, leafSums []Summary, err error) {
	leafSums, err = mapOrdered(ctx, step.concurrency, step.leaves, step.leaf)
	if err != nil {
		return Summary{}, nil, err
	}

	digest, merged := Merge(leafSums)
	if strings.TrimSpace(digest) == "" {
		level.logger.Warn("nothing to reduce, every leaf came back empty")
		root = EmptySummary()
	} else {
		root, err = level.SummarizeUnit(ctx, step.rootPrompt(digest), step.rootShape)
		if err != nil {
			return Summary{}, nil, err
		}
	}
	root.Sections = merged.Sections
	root.Keywords = merged.Keywords
	return root, leafSums, nil
}

// mapOrdered applies fn to every item with at most concurrency calls in flight and returns the
// results indexed like in, regardless of completion order. The first error cancels the remaining
// calls and is returned.
func mapOrdered[T, R any](ctx context.Context, concurrency int, in []T, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(concurrency))
	out := make([]R, len(in))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, item := range in {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			r, err := fn(ctx, i, item)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			out[i] = r
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
