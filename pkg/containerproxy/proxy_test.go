package containerproxy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/pool"
)

type fakeDriver struct {
	mu          sync.Mutex
	created     int
	removed     int
	failCreate  bool
	failExecute bool
}

func (f *fakeDriver) Create(ctx context.Context, worker pool.WorkerID, kind action.ExecKind, memoryMB int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("create failed")
	}
	f.created++
	return "handle-" + string(worker), nil
}

func (f *fakeDriver) Init(ctx context.Context, handle string) error { return nil }

func (f *fakeDriver) Execute(ctx context.Context, handle string, run action.Run) error {
	if f.failExecute {
		return errors.New("execute failed")
	}
	return nil
}

func (f *fakeDriver) Pause(ctx context.Context, handle string) error  { return nil }
func (f *fakeDriver) Resume(ctx context.Context, handle string) error { return nil }

func (f *fakeDriver) Remove(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return nil
}

func drainOne(t *testing.T, ch <-chan pool.SupervisorMessage) pool.SupervisorMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for supervisor message")
		return pool.SupervisorMessage{}
	}
}

func TestProxy_StartReportsPreWarmedData(t *testing.T) {
	driver := &fakeDriver{}
	inbox := make(chan pool.SupervisorMessage, 4)
	factory := New(driver, Config{IdleTimeout: time.Hour, InboxSize: 4}, zerolog.Nop())
	handle := factory("w1", inbox)

	handle.Send(pool.StartMessage("nodejs:20", 256))

	msg := drainOne(t, inbox)
	assert.Equal(t, pool.MsgNeedWork, msg.Kind)
	assert.Equal(t, pool.PreWarmedData, msg.Data.Kind)
	assert.Equal(t, action.ExecKind("nodejs:20"), msg.Data.Prewarmed.Kind)
}

func TestProxy_ColdRunReportsWarmedData(t *testing.T) {
	driver := &fakeDriver{}
	inbox := make(chan pool.SupervisorMessage, 4)
	factory := New(driver, Config{IdleTimeout: time.Hour, InboxSize: 4}, zerolog.Nop())
	handle := factory("w1", inbox)

	run := action.Run{ActivationID: "act-1", Action: action.Action{Name: "hello", Kind: "nodejs:20", MemoryMB: 256}, Tenant: "tenantX"}
	handle.Send(pool.RunJobMessage(run))

	msg := drainOne(t, inbox)
	require.Equal(t, pool.MsgNeedWork, msg.Kind)
	assert.Equal(t, pool.WarmedData, msg.Data.Kind)
	assert.Equal(t, "tenantX", string(msg.Data.Warmed.Tenant))
}

func TestProxy_ExecuteFailureReschedulesAndRemoves(t *testing.T) {
	driver := &fakeDriver{failExecute: true}
	inbox := make(chan pool.SupervisorMessage, 4)
	factory := New(driver, Config{IdleTimeout: time.Hour, InboxSize: 4}, zerolog.Nop())
	handle := factory("w1", inbox)

	run := action.Run{ActivationID: "act-1", Action: action.Action{Name: "hello", Kind: "nodejs:20", MemoryMB: 256}, Tenant: "tenantX"}
	handle.Send(pool.RunJobMessage(run))

	first := drainOne(t, inbox)
	assert.Equal(t, pool.MsgRescheduleJob, first.Kind)

	second := drainOne(t, inbox)
	assert.Equal(t, pool.MsgRun, second.Kind)
	assert.Equal(t, run.ActivationID, second.Run.ActivationID)

	third := drainOne(t, inbox)
	assert.Equal(t, pool.MsgContainerRemoved, third.Kind)
}

func TestProxy_RejectsConcurrentRunWhileRunning(t *testing.T) {
	driver := &fakeDriver{}
	inbox := make(chan pool.SupervisorMessage, 8)
	p := &Proxy{
		id:         "w1",
		driver:     driver,
		cfg:        Config{IdleTimeout: time.Hour, InboxSize: 4},
		log:        zerolog.Nop(),
		inbox:      make(chan pool.ProxyMessage, 4),
		supervisor: inbox,
		state:      Running,
	}

	run := action.Run{ActivationID: "act-2"}
	p.onRun(context.Background(), run)

	msg := drainOne(t, inbox)
	assert.Equal(t, pool.MsgRescheduleJob, msg.Kind)
}
