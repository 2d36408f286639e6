package checkpoint

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts checkpoint lifecycle events.
type Metrics struct {
	Marks             prometheus.Counter
	Snapshots         prometheus.Counter
	EvictedNodes      prometheus.Counter
	EvictedBytes      prometheus.Counter
	Recomputes        prometheus.Counter
	RecomputeFailures prometheus.Counter
	StaleRestores     prometheus.Counter
}

// NewMetrics creates the checkpoint counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agraph",
			Subsystem: "checkpoint",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Marks:             counter("marks_total", "Nodes marked as checkpoints"),
		Snapshots:         counter("snapshots_total", "Operand snapshot captures, one per checkpoint node"),
		EvictedNodes:      counter("evicted_nodes_total", "Node values cleared by eviction"),
		EvictedBytes:      counter("evicted_bytes_total", "Bytes of node values cleared by eviction"),
		Recomputes:        counter("recomputes_total", "Successful checkpoint recomputes"),
		RecomputeFailures: counter("recompute_failures_total", "Failed checkpoint recomputes"),
		StaleRestores:     counter("stale_restores_total", "Snapshot restores over an operand written after capture"),
	}
	if reg != nil {
		reg.MustRegister(
			m.Marks,
			m.Snapshots,
			m.EvictedNodes,
			m.EvictedBytes,
			m.Recomputes,
			m.RecomputeFailures,
			m.StaleRestores,
		)
	}
	return m
}
