package pool_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/containerproxy"
	"github.com/cuemby/invoker/pkg/feed"
	"github.com/cuemby/invoker/pkg/pool"
)

type fakeDriver struct {
	mu              sync.Mutex
	handles         int
	removes         int
	failNextExecute bool
}

func (f *fakeDriver) Create(ctx context.Context, worker pool.WorkerID, kind action.ExecKind, memoryMB int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles++
	return fmt.Sprintf("handle-%d", f.handles), nil
}
func (f *fakeDriver) Init(ctx context.Context, handle string) error    { return nil }
func (f *fakeDriver) Pause(ctx context.Context, handle string) error  { return nil }
func (f *fakeDriver) Resume(ctx context.Context, handle string) error { return nil }

func (f *fakeDriver) Execute(ctx context.Context, handle string, run action.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextExecute {
		f.failNextExecute = false
		return fmt.Errorf("injected execute failure")
	}
	return nil
}

func (f *fakeDriver) Remove(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	return nil
}

func (f *fakeDriver) setFailNextExecute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextExecute = true
}

func (f *fakeDriver) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

func (f *fakeDriver) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles
}

type recordingMetrics struct {
	mu          sync.Mutex
	outcomes    []pool.Outcome
	saturations int
	prewarmed   int
}

func (r *recordingMetrics) ContainerStart(o pool.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}
func (r *recordingMetrics) PoolPopulation(free, busy, prewarmed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prewarmed = prewarmed
}
func (r *recordingMetrics) Saturated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saturations++
}

func (r *recordingMetrics) last() pool.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

func (r *recordingMetrics) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

func (r *recordingMetrics) prewarmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prewarmed
}

func newTestSupervisor(t *testing.T, cfg pool.Config) (*pool.Supervisor, *feed.Channel, *recordingMetrics, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{}
	factory := containerproxy.New(driver, containerproxy.Config{IdleTimeout: time.Hour, InboxSize: 4}, zerolog.Nop())
	f := feed.NewChannel(cfg.MaxActiveContainers + 8)
	metrics := &recordingMetrics{}
	sup, err := pool.New(cfg, factory, f, pool.WithMetrics(metrics))
	require.NoError(t, err)
	go sup.Run()
	t.Cleanup(sup.Stop)
	return sup, f, metrics, driver
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// Scenario 1: cold start, then warm reuse of the same proxy.
func TestScenario_ColdStartThenWarmReuse(t *testing.T) {
	_, f, metrics, _ := newTestSupervisor(t, pool.Config{MaxActiveContainers: 2})

	a := action.Action{Name: "hello", Kind: "nodejs:20", MemoryMB: 256}
	f.Push(action.Run{ActivationID: "a1", Action: a, Tenant: "tenantX"})

	waitFor(t, func() bool { return metrics.count() == 1 })
	assert.Equal(t, pool.OutcomeCold, metrics.last())

	waitFor(t, func() bool { return f.ProcessedCount() == 1 })

	f.Push(action.Run{ActivationID: "a2", Action: a, Tenant: "tenantX"})
	waitFor(t, func() bool { return metrics.count() == 2 })
	assert.Equal(t, pool.OutcomeWarm, metrics.last())
}

// Scenario 2: prewarm consumption and replenishment.
func TestScenario_PrewarmConsumptionAndReplenishment(t *testing.T) {
	_, f, metrics, driver := newTestSupervisor(t, pool.Config{
		MaxActiveContainers: 2,
		PrewarmConfig:       []pool.PrewarmConfigEntry{{Count: 1, Kind: "nodejs:20", MemoryMB: 256}},
	})

	// The initial prewarm fill completes asynchronously: wait until the
	// supervisor holds the prewarmed container before sending the Run.
	waitFor(t, func() bool { return metrics.prewarmedCount() == 1 })

	a := action.Action{Name: "hello", Kind: "nodejs:20", MemoryMB: 256}
	f.Push(action.Run{ActivationID: "a1", Action: a, Tenant: "tenantX"})

	waitFor(t, func() bool { return metrics.count() == 1 })
	assert.Equal(t, pool.OutcomePrewarmed, metrics.last())

	// The consumed prewarmed container is replaced by a freshly created one.
	waitFor(t, func() bool { return driver.createCount() == 2 })
}

// Scenario 3: LRU eviction among free warm containers. The victim's
// container must actually be torn down (driver.Remove called), not merely
// dropped from the pool's maps — otherwise eviction reclaims a map slot
// without reclaiming the memory it exists to free.
func TestScenario_LRUEviction(t *testing.T) {
	_, f, metrics, driver := newTestSupervisor(t, pool.Config{MaxActiveContainers: 2})

	a := action.Action{Name: "a", Kind: "nodejs:20", MemoryMB: 256}
	b := action.Action{Name: "b", Kind: "nodejs:20", MemoryMB: 256}
	c := action.Action{Name: "c", Kind: "nodejs:20", MemoryMB: 256}

	f.Push(action.Run{ActivationID: "1", Action: a, Tenant: "X"})
	waitFor(t, func() bool { return metrics.count() == 1 && f.ProcessedCount() == 1 })

	f.Push(action.Run{ActivationID: "2", Action: b, Tenant: "Y"})
	waitFor(t, func() bool { return metrics.count() == 2 && f.ProcessedCount() == 2 })

	// Both workers are now warm and free (busy=0, free=2, at capacity).
	f.Push(action.Run{ActivationID: "3", Action: c, Tenant: "Z"})
	waitFor(t, func() bool { return metrics.count() == 3 })
	assert.Equal(t, pool.OutcomeRecreated, metrics.last())

	waitFor(t, func() bool { return driver.removeCount() == 1 })
}

// Scenario 4: saturation reschedules and throttles the log/saturation mark.
func TestScenario_SaturationReschedulesAndThrottles(t *testing.T) {
	_, f, metrics, _ := newTestSupervisor(t, pool.Config{MaxActiveContainers: 1, LogMessageInterval: time.Hour})

	a := action.Action{Name: "slow", Kind: "nodejs:20", MemoryMB: 256}
	// First run occupies the only slot forever (fake driver's Execute
	// returns immediately and the proxy reports NeedWork, so to keep the
	// worker busy for the test we issue a burst of runs behind it before
	// it has a chance to go idle: the race is resolved by asserting only an
	// upper bound on saturations rather than depending on exact timing).
	for i := 0; i < 5; i++ {
		f.Push(action.Run{ActivationID: "burst", Action: a, Tenant: "X"})
	}

	waitFor(t, func() bool { return metrics.count() >= 1 })
	// At most one saturation mark is emitted per logMessageInterval; with
	// an hour-long interval a short burst produces at most one.
	assert.LessOrEqual(t, metrics.saturations, 1)
}

// Scenario 5: a proxy that fails to execute sends RescheduleJob and tears
// itself down; the job is served by a fresh container and the feed sees
// exactly one Processed for it — conservation holds across the retry.
func TestScenario_RescheduleJobOnExecuteFailure(t *testing.T) {
	_, f, _, driver := newTestSupervisor(t, pool.Config{MaxActiveContainers: 2})

	driver.setFailNextExecute()

	a := action.Action{Name: "flaky", Kind: "nodejs:20", MemoryMB: 256}
	f.Push(action.Run{ActivationID: "1", Action: a, Tenant: "X"})

	waitFor(t, func() bool { return f.ProcessedCount() == 1 })
	assert.Equal(t, int64(1), f.ProcessedCount(), "the retried run must be counted as processed exactly once")
	assert.GreaterOrEqual(t, driver.createCount(), 2,
		"the failed container and its replacement must both have been created")
	waitFor(t, func() bool { return driver.removeCount() >= 1 })
}

// Scenario 6: tenant mismatch never produces a warm outcome.
func TestScenario_MismatchPreventsReuse(t *testing.T) {
	_, f, metrics, _ := newTestSupervisor(t, pool.Config{MaxActiveContainers: 2})

	a := action.Action{Name: "hello", Kind: "nodejs:20", MemoryMB: 256}
	f.Push(action.Run{ActivationID: "a1", Action: a, Tenant: "tenantX"})
	waitFor(t, func() bool { return metrics.count() == 1 })

	f.Push(action.Run{ActivationID: "a2", Action: a, Tenant: "tenantY"})
	waitFor(t, func() bool { return metrics.count() == 2 })
	assert.NotEqual(t, pool.OutcomeWarm, metrics.last())
}

func TestConstructor_RejectsInvalidConfig(t *testing.T) {
	_, err := pool.New(pool.Config{MaxActiveContainers: 0}, nil, feed.NewChannel(1))
	assert.Error(t, err)

	_, err = pool.New(pool.Config{
		MaxActiveContainers: 1,
		PrewarmConfig:       []pool.PrewarmConfigEntry{{Count: 0, Kind: "nodejs:20"}},
	}, nil, feed.NewChannel(1))
	assert.Error(t, err)
}
