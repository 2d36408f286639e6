// Package parallel splits elementwise kernel loops across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls when a loop is split.
type Config struct {
	Enabled      bool // split at all
	NumWorkers   int  // upper bound on goroutines
	MinChunkSize int  // smallest range handed to one goroutine
}

// DefaultConfig uses every CPU and only splits loops of at least 4096 elements.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential never splits.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// Ranges calls body over disjoint [start, end) ranges covering [0, n) and
// returns when all of them are done. Loops shorter than two chunks run on the
// calling goroutine. body must only write to indices inside its range.
func Ranges(n int, cfg Config, body func(start, end int)) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*cfg.MinChunkSize {
		body(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			body(start, end)
		}()
	}
	wg.Wait()
}
