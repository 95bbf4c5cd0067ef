package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/invoker/pkg/client"
	"github.com/cuemby/invoker/pkg/containerproxy"
	"github.com/cuemby/invoker/pkg/events"
	"github.com/cuemby/invoker/pkg/feed"
	"github.com/cuemby/invoker/pkg/log"
	"github.com/cuemby/invoker/pkg/metrics"
	"github.com/cuemby/invoker/pkg/pool"
	"github.com/cuemby/invoker/pkg/runtime"
	"github.com/cuemby/invoker/pkg/types"
)

// Config holds worker configuration.
type Config struct {
	NodeID              string
	ManagerAddr         string
	Resources           *types.NodeResources
	MaxActiveContainers int
	ContainerdSocket    string // containerd socket path (empty = runtime.DefaultSocketPath)
	JoinToken           string // join token for initial certificate bootstrap
}

// Worker hosts one node's Pool Supervisor. It registers with the manager,
// heartbeats, pulls the cluster's action manifests and prewarm
// configuration to build the pool's Config, and watches the cluster event
// stream to rebuild the Supervisor whenever an action is revised or the
// prewarm configuration changes.
//
// There is no task-assignment sync loop: the
// Pool Supervisor is itself the scheduling authority, driven by Run
// requests pushed onto Feed(), not by polling the manager for assignments.
// Decoding those Run requests off a message broker is out of scope here —
// Feed just exposes the channel feed.Adapter already defines for that.
type Worker struct {
	nodeID              string
	managerAddr         string
	joinToken           string
	maxActiveContainers int

	client  *client.Client
	runtime *runtime.ContainerdRuntime
	log     zerolog.Logger

	supervisor *pool.Supervisor
	feedCh     *feed.Channel

	stopCh chan struct{}
}

// NewWorker creates a new worker instance, initializing its containerd
// runtime driver. It does not yet contact the manager; call Start for that.
func NewWorker(cfg *Config) (*Worker, error) {
	rt, err := runtime.NewContainerdRuntime(cfg.ContainerdSocket)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize containerd runtime: %w", err)
	}

	maxActive := cfg.MaxActiveContainers
	if maxActive <= 0 && cfg.Resources != nil && cfg.Resources.MaxActiveContainers > 0 {
		maxActive = cfg.Resources.MaxActiveContainers
	}
	if maxActive <= 0 {
		maxActive = 32
	}

	return &Worker{
		nodeID:              cfg.NodeID,
		managerAddr:         cfg.ManagerAddr,
		joinToken:           cfg.JoinToken,
		maxActiveContainers: maxActive,
		runtime:             rt,
		log:                 log.WithComponent("worker"),
		stopCh:              make(chan struct{}),
	}, nil
}

// NewEmbeddedWorker creates a worker for in-process embedding alongside a
// manager (hybrid mode). It is identical to NewWorker; kept as a distinct
// constructor documenting the intended embedded-mode entry point.
func NewEmbeddedWorker(cfg *Config) (*Worker, error) {
	return NewWorker(cfg)
}

// Start registers this node with the manager, builds the Pool Supervisor
// from the cluster's current action manifests and prewarm configuration,
// and begins the heartbeat and event-watch loops.
func (w *Worker) Start(resources *types.NodeResources) error {
	c, err := client.NewClientForNode(w.managerAddr, "worker", w.nodeID, w.joinToken)
	if err != nil {
		return fmt.Errorf("failed to connect to manager: %w", err)
	}
	w.client = c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	node := &types.Node{
		ID:            w.nodeID,
		Role:          types.NodeRoleWorker,
		Resources:     resources,
		Status:        types.NodeStatusReady,
		LastHeartbeat: time.Now(),
		CreatedAt:     time.Now(),
	}
	if _, err := w.client.RegisterNode(ctx, node); err != nil {
		return fmt.Errorf("failed to register with manager: %w", err)
	}
	w.log.Info().Str("node_id", w.nodeID).Msg("registered with manager")

	if err := w.rebuildSupervisor(); err != nil {
		return fmt.Errorf("failed to build pool supervisor: %w", err)
	}

	go w.heartbeatLoop()
	go w.eventLoop()

	return nil
}

// Stop stops the worker's background loops, Pool Supervisor, and runtime
// connection.
func (w *Worker) Stop() error {
	close(w.stopCh)
	if w.supervisor != nil {
		w.supervisor.Stop()
	}
	if w.runtime != nil {
		return w.runtime.Close()
	}
	return nil
}

// Feed returns the channel an out-of-scope broker decoder pushes already-
// decoded Run requests onto for this worker's Supervisor to schedule.
func (w *Worker) Feed() *feed.Channel { return w.feedCh }

func (w *Worker) heartbeatLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := w.client.Heartbeat(ctx, w.nodeID)
			cancel()
			if err != nil {
				w.log.Warn().Err(err).Msg("heartbeat failed")
			}
		case <-w.stopCh:
			return
		}
	}
}

// eventLoop watches the cluster event stream and rebuilds the Supervisor
// on any action revision or prewarm configuration change. Pool state is
// explicitly not durable, so dropping the in-flight free/busy/prewarmed
// population on rebuild — exactly as happens on a restart — is the
// correct response to a configuration change, not a shortcut.
func (w *Worker) eventLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := w.client.WatchEvents(ctx)
		if err != nil {
			w.log.Warn().Err(err).Msg("failed to watch cluster events, retrying")
			cancel()
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-w.stopCh:
				return
			}
		}

		w.consumeEvents(ch)
		cancel()

		select {
		case <-w.stopCh:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *Worker) consumeEvents(ch <-chan *events.Event) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			switch event.Type {
			case events.EventActionRevised, events.EventActionDeleted, events.EventPrewarmConfigSet:
				w.log.Info().Str("event", string(event.Type)).Str("message", event.Message).
					Msg("cluster configuration changed, rebuilding pool")
				if err := w.rebuildSupervisor(); err != nil {
					w.log.Error().Err(err).Msg("failed to rebuild pool supervisor")
				}
			}
		case <-w.stopCh:
			return
		}
	}
}

// rebuildSupervisor fetches the cluster's current action manifests and
// prewarm configuration and constructs a fresh Pool Supervisor from them,
// stopping and discarding any previous one.
func (w *Worker) rebuildSupervisor() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manifests, err := w.client.ListActionManifests(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch action manifests: %w", err)
	}
	prewarm, err := w.client.GetPrewarmConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch prewarm configuration: %w", err)
	}

	latestRevision := make(map[string]string, len(manifests))
	for _, m := range manifests {
		latestRevision[m.FullyQualifiedName()] = m.Revision
	}

	cfg := pool.Config{
		MaxActiveContainers: w.maxActiveContainers,
		LatestRevision:      latestRevision,
	}
	for _, e := range prewarm {
		cfg.PrewarmConfig = append(cfg.PrewarmConfig, pool.PrewarmConfigEntry{
			Count:    e.Count,
			Kind:     e.Kind,
			MemoryMB: e.MemoryMB,
		})
	}

	factory := containerproxy.New(w.runtime, containerproxy.DefaultConfig(), log.WithComponent("containerproxy"))
	feedCh := feed.NewChannel(cfg.MaxActiveContainers)

	supervisor, err := pool.New(cfg, factory, feedCh,
		pool.WithLogger(log.WithComponent("pool")),
		pool.WithMetrics(metrics.PoolMetrics{}),
	)
	if err != nil {
		return err
	}

	old := w.supervisor
	w.supervisor = supervisor
	w.feedCh = feedCh
	go supervisor.Run()
	if old != nil {
		old.Stop()
	}
	return nil
}
