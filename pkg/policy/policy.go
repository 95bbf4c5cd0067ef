// Package policy holds the pool's scheduling decisions as pure functions.
// Nothing here touches a channel, a goroutine, or a clock; every function
// takes its inputs as arguments and returns a value, which is what makes
// the decisions themselves unit-testable without standing up a Pool
// Supervisor.
package policy

import (
	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/pool/pooltypes"
)

// Candidate pairs a worker ID with the data the pool currently holds for it.
type Candidate struct {
	Worker pooltypes.WorkerID
	Data   pooltypes.ContainerData
}

// Schedule picks a worker from candidates to serve run, or reports that none
// match. Matching requires both the action (namespace, name, revision,
// kind, memory) and the tenant to agree with a WarmedData entry's record;
// a WarmedData container backing a different tenant of the same action is
// never reused, since a tenant's code must not observe another tenant's
// container state.
//
// latestRevision, when non-empty, additionally excludes WarmedData entries
// whose Action.Revision is stale — the mechanism that lets a newly
// registered action revision evict old warm containers lazily instead of
// through a background sweep.
func Schedule(run action.Run, candidates []Candidate, latestRevision string) (pooltypes.WorkerID, bool) {
	for _, c := range candidates {
		if c.Data.Kind != pooltypes.WarmedData {
			continue
		}
		w := c.Data.Warmed
		if !w.Action.Matches(run.Action) {
			continue
		}
		if w.Tenant != run.Tenant {
			continue
		}
		if latestRevision != "" && w.Action.Revision != latestRevision {
			continue
		}
		return c.Worker, true
	}
	return "", false
}

// Remove picks the least-recently-used free worker in WarmedData state to
// evict so its resources can be reclaimed for a cold start. Candidates not
// in WarmedData state are never selected: a PreWarmedData or NoData worker
// is not serving any tenant's container state and has nothing to evict on
// its behalf, and a WarmedData victim must never lose to one just because
// it happens to look "older" under a borrowed LastUsed of zero. If no
// candidate is in WarmedData state, Remove reports none. Otherwise it
// returns the WarmedData candidate with the smallest LastUsed among the
// candidates it is given.
func Remove(candidates []Candidate) (pooltypes.WorkerID, bool) {
	var (
		best    pooltypes.WorkerID
		bestAge int64
		found   bool
	)
	for _, c := range candidates {
		if c.Data.Kind != pooltypes.WarmedData {
			continue
		}
		lastUsed := c.Data.Warmed.LastUsed
		if !found || lastUsed < bestAge {
			best, bestAge, found = c.Worker, lastUsed, true
		}
	}
	return best, found
}

// MatchPrewarmed reports whether a standing-by PreWarmedData entry can back
// run without reinitialization: its (kind, memory) must equal the action's
// (kind, memory) exactly, not merely have enough memory — a prewarm entry
// sized above what the action asks for must not be promoted, since the
// replenishment spawned in its place would inherit the action's smaller
// size and silently shrink the prewarm pool's memory profile over time.
func MatchPrewarmed(run action.Run, data pooltypes.ContainerData) bool {
	if data.Kind != pooltypes.PreWarmedData {
		return false
	}
	p := data.Prewarmed
	return p.Kind == run.Action.Kind && p.MemoryMB == run.Action.MemoryMB
}
