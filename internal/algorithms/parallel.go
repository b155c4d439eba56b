package algorithms

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minRowsPerTask keeps tiny frames from paying goroutine overhead.
const minRowsPerTask = 16

// forEachRowBand splits [0, rows) into contiguous bands and runs fn on each.
// Every output row depends only on input rows, so bands never share writes.
func forEachRowBand(rows, workers int, fn func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	bands := min(workers, (rows+minRowsPerTask-1)/minRowsPerTask)
	if bands <= 1 {
		fn(0, rows)
		return
	}

	chunk := (rows + bands - 1) / bands
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < rows; start += chunk {
		y0, y1 := start, min(start+chunk, rows)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
