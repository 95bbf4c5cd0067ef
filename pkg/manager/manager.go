package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/invoker/pkg/client"
	"github.com/cuemby/invoker/pkg/events"
	"github.com/cuemby/invoker/pkg/security"
	"github.com/cuemby/invoker/pkg/storage"
	"github.com/cuemby/invoker/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Manager represents an invoker cluster control-plane manager node: it
// replicates the node registry, the action manifest registry, and the
// prewarm configuration via Raft, and serves them over pkg/api. It never
// touches a worker's live pool state (free/busy/prewarmed stay local to
// that worker's Supervisor goroutine).
type Manager struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft        *raft.Raft
	fsm         *InvokerFSM
	store       storage.Store
	tokenManager *TokenManager
	eventBroker *events.Broker
}

// Config holds configuration for creating a Manager
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %v", err)
	}

	// NodeID stands in for a cluster-wide ID (Bootstrap does not mint
	// one); every manager in the cluster must derive the same
	// at-rest encryption key, so this only holds up in single-manager
	// clusters today (see DESIGN.md).
	clusterKey := security.DeriveKeyFromClusterID(cfg.NodeID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		return nil, fmt.Errorf("failed to set cluster encryption key: %v", err)
	}

	fsm := NewInvokerFSM(store)
	tokenManager := NewTokenManager()

	eventBroker := events.NewBroker()
	eventBroker.Start()

	m := &Manager{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		fsm:          fsm,
		store:        store,
		tokenManager: tokenManager,
		eventBroker:  eventBroker,
	}

	return m, nil
}

func raftConfig(nodeID string) *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	// The hashicorp defaults (HeartbeatTimeout=1s, ElectionTimeout=1s,
	// LeaderLeaseTimeout=500ms) target WAN deployments; a LAN-local
	// control plane can afford to detect a dead leader and re-elect
	// inside a couple of seconds instead.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

func (m *Manager) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	config := raftConfig(m.nodeID)

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve bind address: %v", err)
	}

	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transport: %v", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create snapshot store: %v", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log store: %v", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stable store: %v", err)
	}

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create raft: %v", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a new single-node Raft cluster
func (m *Manager) Bootstrap() error {
	r, transport, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(m.nodeID), Address: transport.LocalAddr()},
		},
	}

	future := m.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to bootstrap cluster: %v", err)
	}
	return nil
}

// Join adds this manager to an existing cluster by asking the leader to
// add it as a voter over the control-plane HTTP API.
func (m *Manager) Join(leaderAddr string, token string) error {
	r, _, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	c, err := client.NewClientWithToken(leaderAddr, token)
	if err != nil {
		return fmt.Errorf("failed to connect to leader: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.JoinCluster(ctx, m.nodeID, m.bindAddr, token); err != nil {
		return fmt.Errorf("failed to join cluster: %v", err)
	}
	return nil
}

// AddVoter adds a new manager node to the Raft cluster
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}
	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a server from the Raft cluster
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// GetClusterServers returns information about all servers in the Raft cluster
func (m *Manager) GetClusterServers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to get configuration: %v", err)
	}
	return future.Configuration().Servers, nil
}

// IsLeader returns true if this manager is the Raft leader
func (m *Manager) IsLeader() bool {
	return m.raft != nil && m.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// GetRaftStats returns Raft statistics
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}
	return map[string]interface{}{
		"state":          m.raft.State().String(),
		"last_log_index": m.raft.LastIndex(),
		"applied_index":  m.raft.AppliedIndex(),
		"leader":         string(m.raft.Leader()),
	}
}

// NodeID returns this manager's Raft server ID.
func (m *Manager) NodeID() string { return m.nodeID }

// Store returns the manager's underlying storage, for components (pkg/api's
// CA bootstrap) that need to persist data Raft doesn't replicate, such as
// the encrypted CA root key.
func (m *Manager) Store() storage.Store { return m.store }

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker { return m.eventBroker }

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// Apply submits a command to the Raft cluster
func (m *Manager) Apply(cmd Command) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %v", err)
	}
	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %v", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// CreateNode adds a node to the cluster
func (m *Manager) CreateNode(node *types.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "create_node", Data: data})
}

// UpdateNode updates a node in the cluster
func (m *Manager) UpdateNode(node *types.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "update_node", Data: data})
}

// DeleteNode removes a node from the cluster
func (m *Manager) DeleteNode(id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "delete_node", Data: data})
}

// PutActionManifest registers or updates an action manifest. The Deployer
// (pkg/deploy) calls this when a new revision is authored, and follows up
// with an action.revised event so workers evict stale WarmedData lazily.
func (m *Manager) PutActionManifest(manifest *types.ActionManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "put_action_manifest", Data: data})
}

// DeleteActionManifest removes an action manifest by fully-qualified name.
func (m *Manager) DeleteActionManifest(fqn string) error {
	data, err := json.Marshal(fqn)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "delete_action_manifest", Data: data})
}

// PutPrewarmConfig replaces the cluster's prewarm configuration.
func (m *Manager) PutPrewarmConfig(entries []*types.PrewarmConfigEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: "put_prewarm_config", Data: data})
}

// GetNode retrieves a node by ID (read from local store)
func (m *Manager) GetNode(id string) (*types.Node, error) { return m.store.GetNode(id) }

// ListNodes returns all nodes (read from local store)
func (m *Manager) ListNodes() ([]*types.Node, error) { return m.store.ListNodes() }

// GetActionManifest retrieves a manifest by fully-qualified name.
func (m *Manager) GetActionManifest(fqn string) (*types.ActionManifest, error) {
	return m.store.GetActionManifest(fqn)
}

// ListActionManifests returns all registered manifests.
func (m *Manager) ListActionManifests() ([]*types.ActionManifest, error) {
	return m.store.ListActionManifests()
}

// GetPrewarmConfig returns the cluster's current prewarm configuration.
func (m *Manager) GetPrewarmConfig() ([]*types.PrewarmConfigEntry, error) {
	return m.store.ListPrewarmConfig()
}

// GenerateJoinToken generates a new join token for adding nodes
func (m *Manager) GenerateJoinToken(role string) (*JoinToken, error) {
	if !m.IsLeader() {
		return nil, fmt.Errorf("not the leader, tokens can only be generated by the leader")
	}
	return m.tokenManager.GenerateToken(role, 24*time.Hour)
}

// ValidateJoinToken validates a join token
func (m *Manager) ValidateJoinToken(token string) (string, error) {
	return m.tokenManager.ValidateToken(token)
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}
	if m.raft != nil {
		future := m.raft.Shutdown()
		if err := future.Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %v", err)
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %v", err)
		}
	}
	return nil
}
