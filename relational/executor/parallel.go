package executor

import (
	"sync"
)

// forEachRun runs fn for every run index in parallel and waits for all
// workers to finish before returning. Workers operate on disjoint,
// independently owned runs, so no locking is needed; maxWorkers caps
// how many execute at once.
func forEachRun(count, maxWorkers int, fn func(idx int)) {
	if count == 0 {
		return
	}
	if count == 1 {
		fn(0)
		return
	}

	var wg sync.WaitGroup

	// Semaphore to limit concurrent workers
	sem := make(chan struct{}, maxWorkers)

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fn(idx)
		}(i)
	}

	wg.Wait()
}
