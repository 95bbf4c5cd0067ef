package manager

import (
	"time"

	"github.com/cuemby/invoker/pkg/metrics"
)

// MetricsCollector polls the manager's replicated state and Raft stats and
// pushes them into the Prometheus collectors in pkg/metrics.
type MetricsCollector struct {
	manager *Manager
	stopCh  chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	c.collectNodeMetrics()
	c.collectActionMetrics()
	c.collectRaftMetrics()
}

func (c *MetricsCollector) collectNodeMetrics() {
	nodes, err := c.manager.ListNodes()
	if err != nil {
		return
	}

	nodeCounts := make(map[string]map[string]int)
	for _, node := range nodes {
		role := string(node.Role)
		status := string(node.Status)

		if nodeCounts[role] == nil {
			nodeCounts[role] = make(map[string]int)
		}
		nodeCounts[role][status]++
	}

	for role, statuses := range nodeCounts {
		for status, count := range statuses {
			metrics.NodesTotal.WithLabelValues(role, status).Set(float64(count))
		}
	}
}

func (c *MetricsCollector) collectActionMetrics() {
	manifests, err := c.manager.ListActionManifests()
	if err == nil {
		metrics.ActionManifestsTotal.Set(float64(len(manifests)))
	}

	prewarm, err := c.manager.GetPrewarmConfig()
	if err == nil {
		metrics.PrewarmConfigEntriesTotal.Set(float64(len(prewarm)))
	}
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	stats := c.manager.GetRaftStats()
	if stats != nil {
		if lastIndex, ok := stats["last_log_index"].(uint64); ok {
			metrics.RaftLogIndex.Set(float64(lastIndex))
		}
		if appliedIndex, ok := stats["applied_index"].(uint64); ok {
			metrics.RaftAppliedIndex.Set(float64(appliedIndex))
		}
	}
}
