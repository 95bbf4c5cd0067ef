/*
Package types defines the control-plane data structures replicated across
an invoker cluster: cluster topology, node registry entries, action
manifests, and prewarm configuration. These are the values that travel
through Raft and get persisted to BoltDB by pkg/storage; they are not the
pool's own runtime state (see pkg/pool and pkg/action for that).

# Core Types

Cluster Topology:
  - Cluster: cluster identity and manager/worker node counts
  - Node: a manager or worker with its resources and status
  - NodeRole: manager or worker
  - NodeStatus: ready, down, draining, unknown
  - NodeResources: CPU/memory capacity and active-container accounting

Action Registry:
  - ActionManifest: a namespaced action's kind, memory limit, and timeout,
    replicated so any worker can authoritatively resolve a Run's Action
  - PrewarmConfigEntry: how many containers of a kind/memory class the
    cluster wants kept warm ahead of traffic

# Integration Points

  - pkg/storage persists these types to BoltDB
  - pkg/manager replicates them via Raft and exposes CRUD over pkg/api
  - pkg/action.Action is derived from ActionManifest via ToAction()
  - pkg/pool consumes the resolved PrewarmConfigEntry set at startup and
    on action.revised events
*/
package types
