/*
Package metrics provides Prometheus metrics collection and exposition for the
invoker.

The metrics package defines and registers every invoker metric using the
Prometheus client library, giving observability into cluster health, pool
population, and API performance. Metrics are exposed via an HTTP endpoint
for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Cluster: Nodes, action manifests, prewarm  │          │
	│  │  Raft: Leader status, log index, peers      │          │
	│  │  API: Request count, duration               │          │
	│  │  Pool: Container starts, population, latency│          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Cluster Metrics:

invoker_nodes_total{role, status}:
  - Type: Gauge
  - Total nodes by role (manager/worker) and status (ready/down)

invoker_action_manifests_total:
  - Type: Gauge
  - Total number of registered action manifests

invoker_prewarm_config_entries_total:
  - Type: Gauge
  - Total number of prewarm configuration entries

Raft Metrics:

invoker_raft_is_leader:
  - Type: Gauge
  - Whether this node is Raft leader (1=leader, 0=follower)

invoker_raft_peers_total, invoker_raft_log_index, invoker_raft_applied_index:
  - Type: Gauge

API Metrics:

invoker_api_requests_total{method, status}:
  - Type: Counter

invoker_api_request_duration_seconds{method}:
  - Type: Histogram, Prometheus default buckets

Pool Metrics (see pkg/pool.Metrics, pkg/metrics/pool.go):

invoker_container_starts_total{outcome}:
  - Type: Counter
  - outcome is one of: warm, prewarmed, cold, recreated

invoker_pool_population{state}:
  - Type: Gauge
  - state is one of: free, busy, prewarmed

invoker_pool_saturated_total:
  - Type: Counter
  - Incremented each time a Run hits a saturated pool and is rescheduled

invoker_scheduling_latency_seconds:
  - Type: Histogram
  - Time from Run receipt to container dispatch

# Usage

	import "github.com/cuemby/invoker/pkg/metrics"

	metrics.NodesTotal.WithLabelValues("worker", "ready").Set(5)
	metrics.PoolPopulation.WithLabelValues("busy").Inc()
	metrics.ContainerStartsTotal.WithLabelValues("warm").Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.SchedulingLatency)

Expose the endpoint:

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so collisions surface at startup, not under load.

Label Discipline:
  - Labels are cardinality-bounded (role, status, outcome, state) — never an
    action name, node ID, or other unbounded value.

# Integration Points

  - pkg/manager: updates cluster and Raft gauges
  - pkg/pool: reports container-start outcomes and pool population via the
    PoolMetrics adapter (pkg/metrics/pool.go), which implements pool.Metrics
  - pkg/api: instruments API request count and duration
  - pkg/api: its health server serves /metrics through Handler(), next to
    that server's own /health and /ready handlers

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
