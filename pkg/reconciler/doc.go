/*
Package reconciler runs the cluster's node-health sweep: every 10 seconds
the leader lists the node registry and marks any node whose last
heartbeat is older than 30 seconds as down.

It deliberately does not reconcile workload state. A worker's live pool
(free/busy/prewarmed containers) is never replicated to the control
plane — pkg/pool's Supervisor is the sole owner of that state and heals
itself (container crash handling, eviction) without waiting on this
package. Distributing that reconciliation across nodes is out of scope;
see the "Distributed scheduling across nodes" non-goal.

	r := reconciler.NewReconciler(mgr)
	r.Start()
	defer r.Stop()
*/
package reconciler
