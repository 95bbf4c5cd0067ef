/*
Package storage provides BoltDB-backed persistence for the control plane's
replicated state: the node registry, the action manifest registry, the
prewarm configuration, and the cluster CA. All data is JSON-encoded and
stored in separate buckets.

# Buckets

	nodes             Node ID -> Node
	action_manifests  fully-qualified action name -> ActionManifest
	prewarm_config    fixed key -> []*PrewarmConfigEntry (replaced wholesale)
	ca                fixed key -> encrypted CA material

# Transaction model

Reads use db.View (concurrent, snapshot-isolated); writes use db.Update
(serialized, fsync'd on commit). Create and Update share one Put-based
upsert; Delete is idempotent.

# Usage

	store, err := storage.NewBoltStore("/var/lib/invoker/manager-1")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.CreateNode(&types.Node{ID: "node-1", Role: types.NodeRoleWorker})
	manifest, err := store.GetActionManifest("tenant-a/hello")

# Integration

This store is only ever written through pkg/manager's Raft FSM, so every
manager in the cluster applies the same sequence of commands and converges
on identical state — it is never written to directly by request handlers.
*/
package storage
