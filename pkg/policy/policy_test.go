package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/pool/pooltypes"
)

func testAction(revision string) action.Action {
	return action.Action{Namespace: "ns", Name: "hello", Revision: revision, Kind: "nodejs:20", MemoryMB: 256}
}

func TestSchedule_MatchesSameActionAndTenant(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.WarmedEntry(a, "tenantX", 100)},
	}
	run := action.Run{Action: a, Tenant: "tenantX"}

	worker, ok := Schedule(run, candidates, "")
	assert.True(t, ok)
	assert.Equal(t, pooltypes.WorkerID("w1"), worker)
}

func TestSchedule_TenantMismatchPreventsReuse(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.WarmedEntry(a, "tenantX", 100)},
	}
	run := action.Run{Action: a, Tenant: "tenantY"}

	_, ok := Schedule(run, candidates, "")
	assert.False(t, ok)
}

func TestSchedule_RevisionMismatchPreventsReuse(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.WarmedEntry(a, "tenantX", 100)},
	}
	run := action.Run{Action: testAction("2"), Tenant: "tenantX"}

	_, ok := Schedule(run, candidates, "")
	assert.False(t, ok)
}

func TestSchedule_StaleRevisionExcludedByLatestRevision(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.WarmedEntry(a, "tenantX", 100)},
	}
	run := action.Run{Action: a, Tenant: "tenantX"}

	_, ok := Schedule(run, candidates, "2")
	assert.False(t, ok, "entry pinned to revision 1 must not serve a run when the latest registered revision is 2")
}

func TestSchedule_IgnoresNonWarmedEntries(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.NoDataEntry()},
		{Worker: "w2", Data: pooltypes.PreWarmedEntry("nodejs:20", 256)},
	}
	run := action.Run{Action: a, Tenant: "tenantX"}

	_, ok := Schedule(run, candidates, "")
	assert.False(t, ok)
}

func TestRemove_PicksMinimumLastUsed(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "old", Data: pooltypes.WarmedEntry(a, "tenantX", 50)},
		{Worker: "new", Data: pooltypes.WarmedEntry(a, "tenantY", 100)},
	}

	worker, ok := Remove(candidates)
	assert.True(t, ok)
	assert.Equal(t, pooltypes.WorkerID("old"), worker)
}

func TestRemove_NoWarmedCandidatesReturnsFalse(t *testing.T) {
	candidates := []Candidate{
		{Worker: "w1", Data: pooltypes.NoDataEntry()},
		{Worker: "w2", Data: pooltypes.PreWarmedEntry("nodejs:20", 256)},
	}

	_, ok := Remove(candidates)
	assert.False(t, ok)
}

func TestRemove_NeverPicksNonWarmedOverWarmed(t *testing.T) {
	a := testAction("1")
	candidates := []Candidate{
		{Worker: "no-data", Data: pooltypes.NoDataEntry()},
		{Worker: "prewarmed", Data: pooltypes.PreWarmedEntry("nodejs:20", 256)},
		{Worker: "warmed", Data: pooltypes.WarmedEntry(a, "tenantX", 999999)},
	}

	worker, ok := Remove(candidates)
	assert.True(t, ok)
	assert.Equal(t, pooltypes.WorkerID("warmed"), worker,
		"a NoData/PreWarmedData candidate's borrowed LastUsed of 0 must never outrank the only WarmedData candidate")
}

func TestMatchPrewarmed_RequiresKindAndExactMemory(t *testing.T) {
	run := action.Run{Action: action.Action{Kind: "nodejs:20", MemoryMB: 256}}

	assert.True(t, MatchPrewarmed(run, pooltypes.PreWarmedEntry("nodejs:20", 256)))
	assert.False(t, MatchPrewarmed(run, pooltypes.PreWarmedEntry("nodejs:20", 512)),
		"a larger prewarm entry must not be promoted for a smaller action: the replenishment would inherit the smaller size")
	assert.False(t, MatchPrewarmed(run, pooltypes.PreWarmedEntry("nodejs:20", 128)))
	assert.False(t, MatchPrewarmed(run, pooltypes.PreWarmedEntry("python:3.12", 256)))
	assert.False(t, MatchPrewarmed(run, pooltypes.WarmedEntry(action.Action{}, "", 0)))
}
