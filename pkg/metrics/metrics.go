package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invoker_nodes_total",
			Help: "Total number of nodes by role and status",
		},
		[]string{"role", "status"},
	)

	ActionManifestsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_action_manifests_total",
			Help: "Total number of registered action manifests",
		},
	)

	PrewarmConfigEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_prewarm_config_entries_total",
			Help: "Total number of prewarm configuration entries",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invoker_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoker_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoker_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Pool metrics (see pkg/pool.Metrics)
	ContainerStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoker_container_starts_total",
			Help: "Total number of Run schedules by outcome (warm, prewarmed, cold, recreated)",
		},
		[]string{"outcome"},
	)

	PoolPopulation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invoker_pool_population",
			Help: "Number of containers per pool state",
		},
		[]string{"state"}, // free, busy, prewarmed
	)

	PoolSaturatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invoker_pool_saturated_total",
			Help: "Total number of times a Run hit a saturated pool and was rescheduled",
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoker_scheduling_latency_seconds",
			Help:    "Time from Run receipt to container dispatch, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(ActionManifestsTotal)
	prometheus.MustRegister(PrewarmConfigEntriesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ContainerStartsTotal)
	prometheus.MustRegister(PoolPopulation)
	prometheus.MustRegister(PoolSaturatedTotal)
	prometheus.MustRegister(SchedulingLatency)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
