// Package containerproxy implements the per-container state machine that
// owns one runtime container's lifecycle on behalf of the Pool Supervisor.
// Each Proxy runs its own goroutine consuming a buffered inbox, mirroring
// the worker daemon's executor-loop style: suspend on the runtime driver,
// never block the caller that enqueued the work.
package containerproxy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/pool"
)

// State enumerates the Container Proxy's lifecycle positions.
type State int

const (
	Uninitialized State = iota
	Starting
	Started
	Running
	Pausing
	Paused
	Removing
	Removed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Starting:
		return "starting"
	case Started:
		return "started"
	case Running:
		return "running"
	case Pausing:
		return "pausing"
	case Paused:
		return "paused"
	case Removing:
		return "removing"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// RuntimeDriver is the interface the proxy commands to actually create,
// initialize, execute, pause, resume, and destroy a container. Production
// wiring backs this with the containerd-based driver; tests supply a fake.
type RuntimeDriver interface {
	// Create provisions a container for the given exec kind and memory
	// limit and returns a driver-specific handle (e.g. a containerd
	// container ID).
	Create(ctx context.Context, worker pool.WorkerID, kind action.ExecKind, memoryMB int64) (handle string, err error)
	// Init brings a freshly created container up to a warm, no-job-
	// assigned state (runtime boot, health wait) without running any
	// tenant code.
	Init(ctx context.Context, handle string) error
	// Execute runs run's payload inside the container. An error here is
	// always treated as transient by the proxy: it reschedules the job
	// and begins self-destruction rather than retrying in place.
	Execute(ctx context.Context, handle string, run action.Run) error
	// Pause and Resume back the idle-suspension policy; unused states are
	// legal no-ops for drivers that don't support suspension.
	Pause(ctx context.Context, handle string) error
	Resume(ctx context.Context, handle string) error
	// Remove tears the container down. Must be safe to call on a handle
	// that never finished initializing.
	Remove(ctx context.Context, handle string) error
}

// Config controls a single proxy's idle/age behavior.
type Config struct {
	IdleTimeout time.Duration // self-destruct after this long Started with no Run
	InboxSize   int
}

func DefaultConfig() Config {
	return Config{IdleTimeout: 10 * time.Minute, InboxSize: 4}
}

// Proxy is one Container Proxy actor. Construct with New, then run it with
// Run in its own goroutine; communicate with it only via Send.
type Proxy struct {
	id     pool.WorkerID
	driver RuntimeDriver
	cfg    Config
	log    zerolog.Logger

	inbox      chan pool.ProxyMessage
	supervisor chan<- pool.SupervisorMessage

	state   State
	handle  string
	current action.Run // valid while Running
}

// New constructs a Proxy bound to id. It matches pool.Factory's signature
// so it can be passed directly as the supervisor's proxy factory.
func New(driver RuntimeDriver, cfg Config, log zerolog.Logger) pool.Factory {
	return func(id pool.WorkerID, supervisorInbox chan<- pool.SupervisorMessage) pool.ProxyHandle {
		p := &Proxy{
			id:         id,
			driver:     driver,
			cfg:        cfg,
			log:        log.With().Str("worker", string(id)).Logger(),
			inbox:      make(chan pool.ProxyMessage, cfg.InboxSize),
			supervisor: supervisorInbox,
			state:      Uninitialized,
		}
		go p.run()
		return p
	}
}

// Worker implements pool.ProxyHandle.
func (p *Proxy) Worker() pool.WorkerID { return p.id }

// Send implements pool.ProxyHandle. The inbox is buffered and the proxy
// never blocks on it past the buffer, preserving send-order delivery
// between one proxy and the supervisor as required by the concurrency
// model: this call never blocks the supervisor's own message loop for
// longer than it takes to enqueue.
func (p *Proxy) Send(msg pool.ProxyMessage) {
	p.inbox <- msg
}

func (p *Proxy) run() {
	ctx := context.Background()
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case msg, ok := <-p.inbox:
			if !ok {
				return
			}
			idle.Reset(p.cfg.IdleTimeout)
			p.handle_(ctx, msg)
			if p.state == Removed {
				return
			}
		case <-idle.C:
			if p.state == Started || p.state == Paused {
				p.beginRemoval(ctx)
				return
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

func (p *Proxy) handle_(ctx context.Context, msg pool.ProxyMessage) {
	switch msg.Kind {
	case pool.ProxyStart:
		p.onStart(ctx, msg.StartKind, msg.StartMemoryMB)
	case pool.ProxyRun:
		p.onRun(ctx, msg.Run)
	case pool.ProxyRemove:
		p.beginRemoval(ctx)
	}
}

// onStart implements the Uninitialized + Start(exec, memory) transition:
// create and initialize a container with no tenant code, then report
// PreWarmedData.
func (p *Proxy) onStart(ctx context.Context, kind action.ExecKind, memoryMB int64) {
	if p.state != Uninitialized {
		p.log.Warn().Str("state", p.state.String()).Msg("Start delivered outside Uninitialized, ignoring")
		return
	}
	p.state = Starting
	handle, err := p.driver.Create(ctx, p.id, kind, memoryMB)
	if err != nil {
		p.log.Error().Err(err).Msg("prewarm create failed")
		p.selfDestruct(ctx)
		return
	}
	p.handle = handle
	if err := p.driver.Init(ctx, handle); err != nil {
		p.log.Error().Err(err).Msg("prewarm init failed")
		p.selfDestruct(ctx)
		return
	}
	p.state = Started
	p.supervisor <- pool.NeedWorkMessage(p.id, pool.PreWarmedEntry(kind, memoryMB))
}

// onRun implements the three Run-bearing transitions: cold
// (Uninitialized), prewarm promotion (Started with PreWarmedData implied
// by having never run), and warm reuse (Started after a prior Run).
func (p *Proxy) onRun(ctx context.Context, run action.Run) {
	switch p.state {
	case Running:
		// Invariant: at most one in-flight job. Reject and let the
		// supervisor's RescheduleJob path resend it elsewhere.
		p.rescheduleAndDestruct(ctx, run)
		return
	case Uninitialized:
		handle, err := p.driver.Create(ctx, p.id, run.Action.Kind, run.Action.MemoryMB)
		if err != nil {
			p.log.Error().Err(err).Msg("cold create failed")
			p.rescheduleAndDestruct(ctx, run)
			return
		}
		p.handle = handle
		if err := p.driver.Init(ctx, handle); err != nil {
			p.log.Error().Err(err).Msg("cold init failed")
			p.rescheduleAndDestruct(ctx, run)
			return
		}
		p.state = Started
		fallthrough
	case Started, Paused:
		if p.state == Paused {
			if err := p.driver.Resume(ctx, p.handle); err != nil {
				p.log.Error().Err(err).Msg("resume before run failed")
				p.rescheduleAndDestruct(ctx, run)
				return
			}
		}
		p.state = Running
		p.current = run
		if err := p.driver.Execute(ctx, p.handle, run); err != nil {
			p.log.Warn().Err(err).Str("action", run.Action.FullyQualifiedName()).Msg("execute failed, rescheduling")
			p.rescheduleAndDestruct(ctx, run)
			return
		}
		p.state = Started
		now := time.Now().UnixMilli()
		p.supervisor <- pool.NeedWorkMessage(p.id, pool.WarmedEntry(run.Action, run.Tenant, now))
	default:
		p.log.Warn().Str("state", p.state.String()).Msg("Run delivered in unexpected state, rescheduling")
		p.rescheduleAndDestruct(ctx, run)
	}
}

// rescheduleAndDestruct implements the transient-error path: tell the
// supervisor this worker is gone and re-post the Run on the job's behalf,
// then tear the container down. The order matters: RescheduleJob must be
// observed by the supervisor before ContainerRemoved, so the supervisor
// drops the worker from its maps exactly once.
func (p *Proxy) rescheduleAndDestruct(ctx context.Context, run action.Run) {
	p.supervisor <- pool.RescheduleJobMessage(p.id)
	p.supervisor <- pool.RunMessage(run, nil)
	p.selfDestruct(ctx)
}

func (p *Proxy) selfDestruct(ctx context.Context) {
	p.beginRemoval(ctx)
}

// beginRemoval implements "any state + age/idle timeout" and "any state +
// Remove from supervisor": destroy the container, then report removal.
func (p *Proxy) beginRemoval(ctx context.Context) {
	if p.state == Removed || p.state == Removing {
		return
	}
	p.state = Removing
	if p.handle != "" {
		if err := p.driver.Remove(ctx, p.handle); err != nil {
			p.log.Error().Err(err).Msg("runtime remove failed")
		}
	}
	p.state = Removed
	p.supervisor <- pool.ContainerRemovedMessage(p.id)
}
