package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// coverage records which indices were visited and by how many ranges.
func coverage(n int, cfg Config) ([]int, int) {
	seen := make([]int, n)
	var mu sync.Mutex
	calls := 0
	Ranges(n, cfg, func(start, end int) {
		mu.Lock()
		calls++
		mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	return seen, calls
}

func TestRanges_CoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}
	for _, n := range []int{1, 19, 20, 21, 100, 1001} {
		seen, _ := coverage(n, cfg)
		for i, c := range seen {
			assert.Equal(t, 1, c, "n=%d index %d", n, i)
		}
	}
}

func TestRanges_Splitting(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}

	_, calls := coverage(19, cfg)
	assert.Equal(t, 1, calls, "short loops stay on the caller")

	_, calls = coverage(100, cfg)
	assert.Equal(t, 4, calls)

	_, calls = coverage(30, cfg)
	assert.Equal(t, 3, calls, "chunks never go below MinChunkSize")
}

func TestRanges_Disabled(t *testing.T) {
	_, calls := coverage(100000, Sequential())
	assert.Equal(t, 1, calls)

	_, calls = coverage(0, DefaultConfig())
	assert.Zero(t, calls)
}
