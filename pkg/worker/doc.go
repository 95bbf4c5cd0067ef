/*
Package worker hosts one node's Pool Supervisor: it registers the node with
the manager, keeps a heartbeat, and builds the Supervisor from the
cluster's current action manifests and prewarm configuration.

A worker is a thin shell around the scheduling core in pkg/pool,
pkg/containerproxy, and pkg/runtime — it owns none of the scheduling logic
itself:

	┌──────────────────────── WORKER NODE ─────────────────────────┐
	│                                                                │
	│  Worker                                                       │
	│   - mTLS client to the manager (pkg/client)                   │
	│   - heartbeat loop (5s)                                       │
	│   - event-watch loop (/v1/events) -> rebuildSupervisor         │
	│                                                                │
	│              │ action manifests, prewarm config                │
	│              ▼                                                │
	│        pool.Supervisor  ──factory──▶  containerproxy.Proxy    │
	│              ▲                              │                 │
	│              │ Feed().Push(Run)              ▼                 │
	│      (broker ingress, out of scope)   runtime.ContainerdRuntime│
	│                                                                │
	└────────────────────────────────────────────────────────────────┘

Decoding activation requests off a message broker and pushing them onto
Feed() is explicitly out of scope: this package only exposes the channel
feed.Adapter already defines for that purpose.

Because pool state is kept entirely in memory, an action revision or
prewarm configuration change is handled the same way a restart is: the
worker builds a fresh Supervisor and stops the previous one, rather than trying to migrate live state across the change.
*/
package worker
