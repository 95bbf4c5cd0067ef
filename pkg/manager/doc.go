/*
Package manager implements the invoker cluster's control-plane manager:
the node registry, the action manifest registry, and the prewarm
configuration, replicated across managers with HashiCorp Raft.

The manager never schedules a Run or touches a worker's live pool state
(free/busy/prewarmed containers) — that stays local to each worker's
pool.Supervisor. What the manager owns is the slower-moving, cluster-wide
truth those supervisors read at startup and on action.revised events.

# Architecture

	┌──────────────────── MANAGER NODE ─────────────────────┐
	│  pkg/api HTTP server (mTLS)                           │
	│        │                                              │
	│        ▼                                              │
	│  Manager — proposes Raft commands, exposes CRUD       │
	│        │                                              │
	│        ▼                                              │
	│  Raft consensus (hashicorp/raft, BoltDB log+stable)    │
	│        │                                              │
	│        ▼                                              │
	│  InvokerFSM — Apply/Snapshot/Restore                  │
	│        │                                              │
	│        ▼                                              │
	│  pkg/storage.Store (BoltDB)                            │
	└─────────────────────────────────────────────────────────┘

# Usage

	cfg := &manager.Config{NodeID: "manager-1", BindAddr: "10.0.0.1:8080", DataDir: "/var/lib/invoker/manager-1"}
	mgr, err := manager.NewManager(cfg)
	if err != nil { log.Fatal(err) }
	if err := mgr.Bootstrap(); err != nil { log.Fatal(err) }

	token, _ := mgr.GenerateJoinToken("worker")
	// a second manager process: mgr2.Join("10.0.0.1:8080", token.Token)

# Leadership

Only the leader accepts Apply calls. pkg/api checks IsLeader before a
write and answers a follower's write request with 412 Precondition Failed
naming LeaderAddr(), without attempting the Apply.

# See Also

  - pkg/api for the HTTP surface this package backs
  - pkg/storage for the persisted representation
  - pkg/pool for the per-worker scheduling state this registry feeds
*/
package manager
