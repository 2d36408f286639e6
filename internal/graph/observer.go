package graph

import "sync"

// RecomputeCounter is an Observer that counts forward evaluations per node.
// The first evaluation counts too, so a value of 2 means one recompute.
type RecomputeCounter struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewRecomputeCounter creates an empty counter.
func NewRecomputeCounter() *RecomputeCounter {
	return &RecomputeCounter{counts: make(map[int64]int)}
}

// OnRecomputed implements Observer.
func (c *RecomputeCounter) OnRecomputed(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[n.id]++
}

// Count returns how many times n was evaluated.
func (c *RecomputeCounter) Count(n *Node) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[n.id]
}

// Total returns the number of evaluations across all nodes.
func (c *RecomputeCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, v := range c.counts {
		total += v
	}
	return total
}
