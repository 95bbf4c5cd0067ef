// Package pool implements the container pool scheduler: the Pool
// Supervisor's event loop, its free/busy/prewarmed maps, and the embedded
// Prewarm Manager logic that keeps the prewarmed set topped up.
package pool

import "github.com/cuemby/invoker/pkg/pool/pooltypes"

// The value types below live in pkg/pool/pooltypes so that pkg/policy can
// depend on them without importing pkg/pool back (pkg/pool depends on
// pkg/policy for the scheduling algorithm itself). They are aliased here
// so every other caller keeps writing pool.WorkerID, pool.WarmedEntry, and
// so on, unaware of the split.

type WorkerID = pooltypes.WorkerID

type DataKind = pooltypes.DataKind

const (
	NoData        = pooltypes.NoData
	PreWarmedData = pooltypes.PreWarmedData
	WarmedData    = pooltypes.WarmedData
	Removed       = pooltypes.Removed
)

type ContainerData = pooltypes.ContainerData

type PreWarmedInfo = pooltypes.PreWarmedInfo

type WarmedInfo = pooltypes.WarmedInfo

var (
	NoDataEntry   = pooltypes.NoDataEntry
	PreWarmedEntry = pooltypes.PreWarmedEntry
	WarmedEntry   = pooltypes.WarmedEntry
	RemovedEntry  = pooltypes.RemovedEntry
)

type WorkerState = pooltypes.WorkerState

const (
	Free = pooltypes.Free
	Busy = pooltypes.Busy
)

type PrewarmConfigEntry = pooltypes.PrewarmConfigEntry
