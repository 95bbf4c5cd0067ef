package reconciler

import (
	"time"

	"github.com/cuemby/invoker/pkg/log"
	"github.com/cuemby/invoker/pkg/manager"
	"github.com/cuemby/invoker/pkg/types"
	"github.com/rs/zerolog"
)

// heartbeatTimeout is how long a node can go without a heartbeat before
// the reconciler marks it down. Workers heartbeat well inside this window
// (see pkg/worker), so a missed mark is a genuine outage, not jitter.
const heartbeatTimeout = 30 * time.Second

// Reconciler periodically marks nodes whose heartbeat has lapsed as down.
// It owns no workload state: which containers are running is local to
// each worker's pool.Supervisor and is never replicated here, so there is
// nothing left to reconcile once node health is accounted for.
type Reconciler struct {
	manager *manager.Manager
	log     zerolog.Logger
	stopCh  chan struct{}
}

// NewReconciler creates a new reconciler.
func NewReconciler(mgr *manager.Manager) *Reconciler {
	return &Reconciler{
		manager: mgr,
		log:     log.WithComponent("reconciler"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the reconciliation loop. Followers run it too, but each
// tick returns without reading or updating any node unless this manager is
// the Raft leader.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcileNodes()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) reconcileNodes() {
	if !r.manager.IsLeader() {
		return
	}

	nodes, err := r.manager.ListNodes()
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to list nodes")
		return
	}

	now := time.Now()
	for _, node := range nodes {
		silence := now.Sub(node.LastHeartbeat)
		if silence > heartbeatTimeout && node.Status != types.NodeStatusDown {
			r.log.Warn().Str("node_id", node.ID).Dur("silence", silence).Msg("node down, no heartbeat")
			node.Status = types.NodeStatusDown
			if err := r.manager.UpdateNode(node); err != nil {
				r.log.Warn().Err(err).Str("node_id", node.ID).Msg("failed to mark node down")
			}
		}
	}
}
