package metrics

import "github.com/cuemby/invoker/pkg/pool"

// PoolMetrics adapts the package-level Prometheus collectors to
// pool.Metrics, so a worker's Supervisor can be constructed with
// pool.WithMetrics(metrics.PoolMetrics{}).
type PoolMetrics struct{}

func (PoolMetrics) ContainerStart(outcome pool.Outcome) {
	ContainerStartsTotal.WithLabelValues(string(outcome)).Inc()
}

func (PoolMetrics) PoolPopulation(free, busy, prewarmed int) {
	PoolPopulation.WithLabelValues("free").Set(float64(free))
	PoolPopulation.WithLabelValues("busy").Set(float64(busy))
	PoolPopulation.WithLabelValues("prewarmed").Set(float64(prewarmed))
}

func (PoolMetrics) Saturated() {
	PoolSaturatedTotal.Inc()
}
