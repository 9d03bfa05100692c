// Package workers runs independent jobs with a bounded number of goroutines.
package workers

import "golang.org/x/sync/errgroup"

// ForEach calls fn(i) for every i in [0, n), running at most parallelism calls at the same time.
// If parallelism <= 0 all calls run concurrently; with parallelism == 1 they run sequentially
// in the calling goroutine.
//
// It returns after all calls have finished.
func ForEach(n, parallelism int, fn func(i int)) {
	if parallelism == 1 || n <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}
	if parallelism <= 0 {
		parallelism = -1
	}
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
