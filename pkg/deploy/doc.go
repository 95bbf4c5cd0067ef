/*
Package deploy publishes action revisions to the cluster.

A Deployer persists an action's manifest through the manager (replicated
by Raft) and announces the change on the cluster event broker so worker
nodes can evict stale WarmedData for that action lazily, the next time the
Scheduling Policy would otherwise have reused it:

	┌─────────────────────── Deployer ───────────────────────────┐
	│                                                              │
	│  Deploy(manifest)                                            │
	│    -> manager.PutActionManifest   (Raft-replicated)          │
	│    -> manager.PublishEvent(EventActionRevised)               │
	│                                                                │
	│  Remove(fqn)                                                  │
	│    -> manager.DeleteActionManifest                            │
	│    -> manager.PublishEvent(EventActionDeleted)                │
	│                                                                │
	└────────────────────────────────────────────────────────────────┘

There is no parallelism, delay, or rollback to configure here: an action
revision either exists in the manifest store or it doesn't, and every
worker picks it up the same way — evict on event, recreate cold on next
Run, or inherit it for free on first deploy.
*/
package deploy
