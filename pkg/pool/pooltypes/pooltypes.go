// Package pooltypes holds the value types shared between pkg/pool and
// pkg/policy. Both packages need WorkerID/ContainerData/etc, and pkg/pool
// depends on pkg/policy for the scheduling algorithm, so these types live
// below both rather than inside either — keeping pkg/policy a leaf package
// that never imports pkg/pool back.
package pooltypes

import "github.com/cuemby/invoker/pkg/action"

// WorkerID names one Container Proxy / backing container instance.
type WorkerID string

// DataKind tags which variant a ContainerData value holds. Go has no sum
// types, so the tag plus a pointer-typed payload field stands in for one.
type DataKind int

const (
	// NoData is a worker with no container backing it yet (just reserved).
	NoData DataKind = iota
	// PreWarmedData is an idle container started ahead of demand, not yet
	// bound to any action.
	PreWarmedData
	// WarmedData is a container that has served at least one Run for a
	// specific action and tenant and is eligible for reuse by a matching
	// Run.
	WarmedData
	// Removed marks a worker whose container is gone; it is kept in the
	// map only long enough for in-flight messages referencing it to drain.
	Removed
)

func (k DataKind) String() string {
	switch k {
	case NoData:
		return "no_data"
	case PreWarmedData:
		return "prewarmed"
	case WarmedData:
		return "warmed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// ContainerData is the per-worker record kept in the pool's free, busy, and
// prewarmed maps. Exactly one of the Prewarmed/Warmed fields is meaningful,
// selected by Kind; NoData and Removed carry neither.
type ContainerData struct {
	Kind DataKind

	// Valid when Kind == PreWarmedData.
	Prewarmed *PreWarmedInfo

	// Valid when Kind == WarmedData.
	Warmed *WarmedInfo
}

// PreWarmedInfo describes a standing-by container not yet assigned to an
// action.
type PreWarmedInfo struct {
	Kind     action.ExecKind
	MemoryMB int64
}

// WarmedInfo describes a container that has run at least one activation of
// Action for Tenant and is eligible for direct reuse by a matching Run.
type WarmedInfo struct {
	Action   action.Action
	Tenant   action.Tenant
	LastUsed int64 // unix millis, for LRU eviction under memory pressure
}

// NoDataEntry is the zero-value ContainerData for a freshly reserved worker.
func NoDataEntry() ContainerData { return ContainerData{Kind: NoData} }

// PreWarmedEntry builds a PreWarmedData entry.
func PreWarmedEntry(kind action.ExecKind, memoryMB int64) ContainerData {
	return ContainerData{Kind: PreWarmedData, Prewarmed: &PreWarmedInfo{Kind: kind, MemoryMB: memoryMB}}
}

// WarmedEntry builds a WarmedData entry.
func WarmedEntry(a action.Action, tenant action.Tenant, lastUsed int64) ContainerData {
	return ContainerData{Kind: WarmedData, Warmed: &WarmedInfo{Action: a, Tenant: tenant, LastUsed: lastUsed}}
}

// RemovedEntry marks a worker whose container has been torn down.
func RemovedEntry() ContainerData { return ContainerData{Kind: Removed} }

// WorkerState tracks whether a worker is currently serving a Run. The pool
// never holds a ContainerData for a worker it considers Busy anywhere but
// the busy map: the two maps are kept disjoint by construction.
type WorkerState int

const (
	Free WorkerState = iota
	Busy
)

func (s WorkerState) String() string {
	if s == Busy {
		return "busy"
	}
	return "free"
}

// PrewarmConfigEntry is one (count, exec-kind, memory) tuple the Prewarm
// Manager tries to keep satisfied. It is authored outside the pool and
// handed to the constructor as a resolved slice; the pool never fetches it
// itself.
type PrewarmConfigEntry struct {
	Count    int
	Kind     action.ExecKind
	MemoryMB int64
}
