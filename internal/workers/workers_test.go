package workers

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEach(t *testing.T) {
	for _, parallelism := range []int{-1, 0, 1, 3, 100} {
		const n = 50
		var (
			running, maxRunning atomic.Int32
			mu                  sync.Mutex
			seen                = make(map[int]bool)
		)
		ForEach(n, parallelism, func(i int) {
			current := running.Add(1)
			for {
				previous := maxRunning.Load()
				if current <= previous || maxRunning.CompareAndSwap(previous, current) {
					break
				}
			}
			mu.Lock()
			seen[i] = true
			mu.Unlock()
			running.Add(-1)
		})
		assert.Len(t, seen, n, "parallelism=%d", parallelism)
		if parallelism > 0 {
			assert.LessOrEqual(t, int(maxRunning.Load()), parallelism, "parallelism=%d", parallelism)
		}
	}
}
