package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/invoker/pkg/storage"
	"github.com/cuemby/invoker/pkg/types"
	"github.com/hashicorp/raft"
)

// InvokerFSM implements the Raft Finite State Machine for the control
// plane's replicated state: the node registry, the action manifest
// registry, and the prewarm configuration.
type InvokerFSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewInvokerFSM creates a new FSM instance
func NewInvokerFSM(store storage.Store) *InvokerFSM {
	return &InvokerFSM{
		store: store,
	}
}

// Command represents a state change operation in the Raft log
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Apply applies a Raft log entry to the FSM. Called by Raft once a log
// entry is committed.
func (f *InvokerFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "create_node":
		var node types.Node
		if err := json.Unmarshal(cmd.Data, &node); err != nil {
			return err
		}
		return f.store.CreateNode(&node)

	case "update_node":
		var node types.Node
		if err := json.Unmarshal(cmd.Data, &node); err != nil {
			return err
		}
		return f.store.UpdateNode(&node)

	case "delete_node":
		var nodeID string
		if err := json.Unmarshal(cmd.Data, &nodeID); err != nil {
			return err
		}
		return f.store.DeleteNode(nodeID)

	case "put_action_manifest":
		var manifest types.ActionManifest
		if err := json.Unmarshal(cmd.Data, &manifest); err != nil {
			return err
		}
		return f.store.PutActionManifest(&manifest)

	case "delete_action_manifest":
		var fqn string
		if err := json.Unmarshal(cmd.Data, &fqn); err != nil {
			return err
		}
		return f.store.DeleteActionManifest(fqn)

	case "put_prewarm_config":
		var entries []*types.PrewarmConfigEntry
		if err := json.Unmarshal(cmd.Data, &entries); err != nil {
			return err
		}
		return f.store.PutPrewarmConfig(entries)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot creates a point-in-time snapshot of the FSM, called
// periodically by Raft to compact the log.
func (f *InvokerFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes, err := f.store.ListNodes()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %v", err)
	}

	manifests, err := f.store.ListActionManifests()
	if err != nil {
		return nil, fmt.Errorf("failed to list action manifests: %v", err)
	}

	prewarm, err := f.store.ListPrewarmConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to list prewarm config: %v", err)
	}

	return &InvokerSnapshot{
		Nodes:         nodes,
		Manifests:     manifests,
		PrewarmConfig: prewarm,
	}, nil
}

// Restore restores the FSM from a snapshot, called when a node restarts
// or joins the cluster.
func (f *InvokerFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot InvokerSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, node := range snapshot.Nodes {
		if err := f.store.CreateNode(node); err != nil {
			return fmt.Errorf("failed to restore node: %v", err)
		}
	}

	for _, manifest := range snapshot.Manifests {
		if err := f.store.PutActionManifest(manifest); err != nil {
			return fmt.Errorf("failed to restore action manifest: %v", err)
		}
	}

	if len(snapshot.PrewarmConfig) > 0 {
		if err := f.store.PutPrewarmConfig(snapshot.PrewarmConfig); err != nil {
			return fmt.Errorf("failed to restore prewarm config: %v", err)
		}
	}

	return nil
}

// InvokerSnapshot represents a point-in-time snapshot of cluster state
type InvokerSnapshot struct {
	Nodes         []*types.Node
	Manifests     []*types.ActionManifest
	PrewarmConfig []*types.PrewarmConfigEntry
}

// Persist writes the snapshot to the given SnapshotSink
func (s *InvokerSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release releases the snapshot resources
func (s *InvokerSnapshot) Release() {}
