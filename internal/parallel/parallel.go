// Package parallel splits row-oriented image work across CPU cores.
//
// The compositor operates on horizontal pixel rows that touch disjoint
// memory, so contiguous row bands can run on separate goroutines with no
// locking. Rows hides the band arithmetic behind a single call.
package parallel

import (
	"runtime"
	"sync"
)

// Rows invokes fn over [0, height) split into contiguous half-open bands
// [y0, y1), one band per worker goroutine. Bands never overlap and together
// cover every row exactly once, so fn may write to its rows without
// synchronization. Rows blocks until all bands complete.
//
// With a single CPU, or when height is 1, fn runs once on the calling
// goroutine.
func Rows(height int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	band := (height + workers - 1) / workers

	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += band {
		y1 := y0 + band
		if y1 > height {
			y1 = height
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}
