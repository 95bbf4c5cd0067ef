package types

import (
	"net"
	"time"

	"github.com/cuemby/invoker/pkg/action"
)

// Cluster represents the control plane's view of the invoker fleet.
type Cluster struct {
	ID        string
	CreatedAt time.Time
	Managers  []*Node
	Workers   []*Node
}

// Node represents a manager or worker (invoker) node in the cluster. Only
// the fields the control plane needs to answer "does this node exist and
// is it healthy" are kept; workload placement across nodes stays out of
// scope for the core pool.
type Node struct {
	ID            string
	Role          NodeRole
	Address       string // Host IP address
	OverlayIP     net.IP // WireGuard overlay IP
	Hostname      string
	Labels        map[string]string
	Resources     *NodeResources
	Status        NodeStatus
	LastHeartbeat time.Time
	CreatedAt     time.Time
}

// NodeRole defines the role of a node
type NodeRole string

const (
	NodeRoleManager NodeRole = "manager"
	NodeRoleWorker  NodeRole = "worker"
)

// NodeStatus represents the current state of a node
type NodeStatus string

const (
	NodeStatusReady    NodeStatus = "ready"
	NodeStatusDown     NodeStatus = "down"
	NodeStatusDraining NodeStatus = "draining"
	NodeStatusUnknown  NodeStatus = "unknown"
)

// NodeResources tracks resource capacity and allocation, reused to report
// how much of a worker node's pool capacity (maxActiveContainers) is in
// use.
type NodeResources struct {
	CPUCores    int
	MemoryBytes int64
	DiskBytes   int64

	CPUAllocated    float64
	MemoryAllocated int64
	DiskAllocated   int64

	MaxActiveContainers int
	ActiveContainers    int
}

// ActionManifest is the control-plane-persisted metadata record for an
// action: enough for a worker that has never seen this action before to
// reconstruct an action.Action descriptor. The code package itself is
// never stored here.
type ActionManifest struct {
	Namespace string
	Name      string
	Revision  string
	Kind      action.ExecKind
	MemoryMB  int64
	TimeoutMs int64
	UpdatedAt time.Time
}

// FullyQualifiedName is the namespace/name pair this manifest is stored
// and looked up by.
func (m ActionManifest) FullyQualifiedName() string {
	return m.Namespace + "/" + m.Name
}

// ToAction converts a manifest record into the descriptor the pool
// schedules against.
func (m ActionManifest) ToAction() action.Action {
	return action.Action{
		Namespace: m.Namespace,
		Name:      m.Name,
		Revision:  m.Revision,
		Kind:      m.Kind,
		MemoryMB:  m.MemoryMB,
		Timeout:   m.TimeoutMs,
	}
}

// PrewarmConfigEntry is the control-plane-authored, Raft-replicated record
// a worker's Prewarm Manager loads at startup and on config change.
type PrewarmConfigEntry struct {
	Count     int
	Kind      action.ExecKind
	MemoryMB  int64
	UpdatedAt time.Time
}

// Event represents a cluster event (node join/leave, manifest/prewarm
// config changes, action revision rollout) for the streaming API and for
// the worker's local revision-eviction hook.
type Event struct {
	Type      string
	Timestamp time.Time
	NodeID    string
	Message   string
	Data      map[string]string
}
