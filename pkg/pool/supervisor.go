package pool

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/feed"
	"github.com/cuemby/invoker/pkg/policy"
)

// Outcome tags the container-state label emitted as the containerStart
// observability mark for each scheduled Run.
type Outcome string

const (
	OutcomeWarm      Outcome = "warm"
	OutcomePrewarmed Outcome = "prewarmed"
	OutcomeCold      Outcome = "cold"
	OutcomeRecreated Outcome = "recreated"
)

// Metrics is the narrow set of observability hooks the supervisor calls.
// A no-op implementation is used when none is supplied; production wiring
// supplies the prometheus-backed one.
type Metrics interface {
	ContainerStart(outcome Outcome)
	PoolPopulation(free, busy, prewarmed int)
	Saturated()
}

type noopMetrics struct{}

func (noopMetrics) ContainerStart(Outcome)       {}
func (noopMetrics) PoolPopulation(int, int, int) {}
func (noopMetrics) Saturated()                   {}

// Config carries the pool's one-time configuration surface. Validated at
// construction; invalid values are a fatal, non-recoverable error, never a
// runtime panic.
type Config struct {
	MaxActiveContainers int
	PrewarmConfig       []PrewarmConfigEntry
	LogMessageInterval  time.Duration
	LatestRevision      map[string]string // action FQN -> latest registered revision, optional
}

func (c Config) validate() error {
	if c.MaxActiveContainers <= 0 {
		return fmt.Errorf("pool: maxActiveContainers must be positive, got %d", c.MaxActiveContainers)
	}
	for i, e := range c.PrewarmConfig {
		if e.Count < 1 {
			return fmt.Errorf("pool: prewarm entry %d has count %d, must be >= 1", i, e.Count)
		}
		if e.Kind == "" {
			return fmt.Errorf("pool: prewarm entry %d has empty exec-kind", i)
		}
	}
	return nil
}

// Supervisor is the single-writer owner of free/busy/prewarmed. Construct
// with New, then call Run in its own goroutine. All state access happens
// inside that goroutine; external callers only ever send on Inbox() or
// through the Feed Adapter.
type Supervisor struct {
	cfg     Config
	factory Factory
	feed    feed.Adapter
	log     zerolog.Logger
	metrics Metrics
	now     func() time.Time

	inbox chan SupervisorMessage

	// reposts is the dedicated FIFO for self-rescheduled Runs (step 4 of
	// the scheduling algorithm). It is owned exclusively by the Run
	// goroutine — appended to and drained from nowhere else — so it needs
	// no lock; a separate queue from inbox means a saturated pool can
	// never deadlock itself by blocking on its own send. See reschedule.
	reposts []SupervisorMessage

	free      map[WorkerID]ContainerData
	busy      map[WorkerID]ContainerData
	prewarmed map[WorkerID]ContainerData
	proxies   map[WorkerID]ProxyHandle

	nextID      int
	logDeadline *time.Time
	stopCh      chan struct{}
}

// Option customizes Supervisor construction beyond the required Config.
type Option func(*Supervisor)

func WithMetrics(m Metrics) Option { return func(s *Supervisor) { s.metrics = m } }
func WithLogger(l zerolog.Logger) Option { return func(s *Supervisor) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Supervisor) { s.now = now } }

// New validates cfg and constructs a Supervisor. factory is called once
// per new Container Proxy the scheduling algorithm decides to create.
// feedAdapter is notified of Processed capacity events.
func New(cfg Config, factory Factory, feedAdapter feed.Adapter, opts ...Option) (*Supervisor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.LogMessageInterval <= 0 {
		cfg.LogMessageInterval = 10 * time.Second
	}
	s := &Supervisor{
		cfg:       cfg,
		factory:   factory,
		feed:      feedAdapter,
		log:       zerolog.Nop(),
		metrics:   noopMetrics{},
		now:       time.Now,
		inbox:     make(chan SupervisorMessage, cfg.MaxActiveContainers*2+16),
		free:      make(map[WorkerID]ContainerData),
		busy:      make(map[WorkerID]ContainerData),
		prewarmed: make(map[WorkerID]ContainerData),
		proxies:   make(map[WorkerID]ProxyHandle),
		stopCh:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Inbox returns the channel external collaborators (typically the Feed
// Adapter's delivery loop) send SupervisorMessage values on.
func (s *Supervisor) Inbox() chan<- SupervisorMessage { return s.inbox }

// Stop requests the supervisor's Run loop to exit at its next loop
// iteration; messages still queued on inbox or in reposts are not
// processed. Shutdown is cooperative, as specified: it does not
// force-remove any worker.
func (s *Supervisor) Stop() { close(s.stopCh) }

// Run is the supervisor's single-writer event loop. It performs the
// initial prewarm fill, then processes messages to completion one at a
// time until Stop is called.
//
// Inbox and feed deliveries always take priority over a queued repost: a
// repost is drained only once neither has anything immediately ready,
// which is what lets a continuously saturated pool keep making progress
// on NeedWork/ContainerRemoved messages (the only way it ever stops being
// saturated) instead of spinning on retrying the same Run.
func (s *Supervisor) Run() {
	s.initialPrewarmFill()
	runs := s.feed.Runs()
	for {
		select {
		case <-s.stopCh:
			return
		case msg := <-s.inbox:
			s.handle(msg)
			continue
		case r, ok := <-runs:
			if ok {
				s.handle(RunMessage(r, nil))
			} else {
				runs = nil
			}
			continue
		default:
		}

		if len(s.reposts) > 0 {
			msg := s.reposts[0]
			s.reposts = s.reposts[1:]
			s.handle(msg)
			continue
		}

		select {
		case <-s.stopCh:
			return
		case msg := <-s.inbox:
			s.handle(msg)
		case r, ok := <-runs:
			if ok {
				s.handle(RunMessage(r, nil))
			} else {
				runs = nil
			}
		}
	}
}

func (s *Supervisor) handle(msg SupervisorMessage) {
	switch msg.Kind {
	case MsgRun:
		s.handleRun(msg.Run, msg.RetryLogDeadline)
	case MsgNeedWork:
		s.handleNeedWork(msg.From, msg.Data)
	case MsgContainerRemoved:
		s.handleContainerRemoved(msg.From)
	case MsgRescheduleJob:
		s.handleRescheduleJob(msg.From)
	}
	s.metrics.PoolPopulation(len(s.free), len(s.busy), len(s.prewarmed))
}

// initialPrewarmFill implements the Prewarm Manager's initial-fill
// invariant: count proxies per configuration entry, each sent Start.
func (s *Supervisor) initialPrewarmFill() {
	for _, entry := range s.cfg.PrewarmConfig {
		for i := 0; i < entry.Count; i++ {
			s.spawnPrewarm(entry.Kind, entry.MemoryMB)
		}
	}
}

func (s *Supervisor) spawnPrewarm(kind action.ExecKind, memoryMB int64) {
	id := s.newWorkerID()
	handle := s.factory(id, s.inbox)
	s.proxies[id] = handle
	handle.Send(StartMessage(kind, memoryMB))
}

func (s *Supervisor) newWorkerID() WorkerID {
	s.nextID++
	return WorkerID(fmt.Sprintf("worker-%d", s.nextID))
}

func (s *Supervisor) freeCandidates() []policy.Candidate {
	out := make([]policy.Candidate, 0, len(s.free))
	for id, data := range s.free {
		out = append(out, policy.Candidate{Worker: id, Data: data})
	}
	return out
}

func (s *Supervisor) prewarmedCandidates() []policy.Candidate {
	out := make([]policy.Candidate, 0, len(s.prewarmed))
	for id, data := range s.prewarmed {
		out = append(out, policy.Candidate{Worker: id, Data: data})
	}
	return out
}

// handleRun implements the scheduling algorithm for Run(r): reuse a warm
// container for the exact action, else promote a matching prewarmed
// container, else create a cold one while busy+free is under the cap. At
// the cap it evicts the least-recently-used warm container from free and
// retries prewarm promotion, else creates a cold one (both tagged
// recreated). A Run that finds busy at the cap, or nothing to evict, is
// rescheduled.
func (s *Supervisor) handleRun(r action.Run, retryLogDeadline *time.Time) {
	if len(s.busy) >= s.cfg.MaxActiveContainers {
		s.reschedule(r, retryLogDeadline)
		return
	}

	latestRevision := s.cfg.LatestRevision[r.Action.FullyQualifiedName()]

	// (a) warm reuse
	if worker, ok := policy.Schedule(r, s.freeCandidates(), latestRevision); ok {
		s.dispatch(worker, r, OutcomeWarm, s.free)
		return
	}

	underCap := len(s.busy)+len(s.free) < s.cfg.MaxActiveContainers

	// (b) prewarmed promotion
	if underCap {
		if worker, ok := s.matchPrewarmed(r); ok {
			data := s.prewarmed[worker]
			delete(s.prewarmed, worker)
			s.free[worker] = data
			s.dispatch(worker, r, OutcomePrewarmed, s.free)
			s.replenishPrewarm(data.Prewarmed.Kind, data.Prewarmed.MemoryMB)
			return
		}
	}

	// (c) cold
	if underCap {
		id := s.newWorkerID()
		handle := s.factory(id, s.inbox)
		s.proxies[id] = handle
		s.free[id] = NoDataEntry()
		s.dispatch(id, r, OutcomeCold, s.free)
		return
	}

	// (d) recreated: evict an LRU warm victim from free, retry prewarm
	// on the freed slot, else cold.
	if victim, ok := policy.Remove(s.freeCandidates()); ok {
		// Tear the victim's container down before dropping it from free:
		// removeWorker only clears the scheduling maps, never proxies, so
		// the handle survives here to carry this send, and stays in
		// s.proxies until handleContainerRemoved observes ContainerRemoved
		// and deletes it — the map-removal invariant of §3 requires that
		// to happen only after Remove was sent or ContainerRemoved itself
		// arrived, never before.
		s.proxies[victim].Send(RemoveMessage())
		s.removeWorker(victim)
		if worker, ok := s.matchPrewarmed(r); ok {
			data := s.prewarmed[worker]
			delete(s.prewarmed, worker)
			s.free[worker] = data
			s.dispatch(worker, r, OutcomeRecreated, s.free)
			s.replenishPrewarm(data.Prewarmed.Kind, data.Prewarmed.MemoryMB)
			return
		}
		id := s.newWorkerID()
		handle := s.factory(id, s.inbox)
		s.proxies[id] = handle
		s.free[id] = NoDataEntry()
		s.dispatch(id, r, OutcomeRecreated, s.free)
		return
	}

	// No outcome: busy saturated with no evictable victim.
	s.reschedule(r, retryLogDeadline)
}

func (s *Supervisor) matchPrewarmed(r action.Run) (WorkerID, bool) {
	for _, c := range s.prewarmedCandidates() {
		if policy.MatchPrewarmed(r, c.Data) {
			return c.Worker, true
		}
	}
	return "", false
}

// dispatch moves worker from free to busy, forwards the job, and marks the
// observability outcome.
func (s *Supervisor) dispatch(worker WorkerID, r action.Run, outcome Outcome, from map[WorkerID]ContainerData) {
	data := from[worker]
	delete(from, worker)
	s.busy[worker] = data
	s.proxies[worker].Send(RunJobMessage(r))
	s.metrics.ContainerStart(outcome)
	s.log.Info().Str("worker", string(worker)).Str("outcome", string(outcome)).
		Str("action", r.Action.FullyQualifiedName()).Msg("containerStart")
}

func (s *Supervisor) replenishPrewarm(kind action.ExecKind, memoryMB int64) {
	// Only (kind, memory) travel into the replacement; the action's code
	// field, and everything tenant-specific about the Run that triggered
	// this promotion, is never read here.
	s.spawnPrewarm(kind, memoryMB)
}

func (s *Supervisor) removeWorker(id WorkerID) {
	delete(s.free, id)
	delete(s.busy, id)
	delete(s.prewarmed, id)
}

// reschedule implements step 4: log-throttled saturation, self-repost at
// the back of the queue.
func (s *Supervisor) reschedule(r action.Run, deadline *time.Time) {
	now := s.now()
	if deadline == nil {
		// A Run that has not been rescheduled before carries no deadline of
		// its own; it shares the pool-wide one, so a burst of fresh Runs
		// against a saturated pool logs once per interval, not once per Run.
		deadline = s.logDeadline
	}
	if deadline == nil || now.After(*deadline) {
		s.log.Error().Int("busy", len(s.busy)).Int("free", len(s.free)).
			Int("max", s.cfg.MaxActiveContainers).Msg("pool saturated, rescheduling run")
		s.metrics.Saturated()
		next := now.Add(s.cfg.LogMessageInterval)
		deadline = &next
		s.logDeadline = deadline
	}
	// Append to the dedicated reposts FIFO rather than sending back onto
	// inbox: inbox has only one reader, this goroutine, so a blocking
	// send here — once a sustained saturation fills inbox's buffer with
	// reposts and proxy messages — would deadlock the supervisor against
	// itself. reposts is unbounded and owned solely by this goroutine.
	s.reposts = append(s.reposts, RunMessage(r, deadline))
}

// handleNeedWork implements both NeedWork(WarmedData) and
// NeedWork(PreWarmedData).
func (s *Supervisor) handleNeedWork(from WorkerID, data ContainerData) {
	if data.Kind == PreWarmedData {
		s.prewarmed[from] = data
		return
	}
	_, wasBusy := s.busy[from]
	delete(s.busy, from)
	s.free[from] = data
	if wasBusy {
		s.feed.Processed()
	}
}

// handleContainerRemoved removes the sender from every map and notifies
// the feed only if it had been busy.
func (s *Supervisor) handleContainerRemoved(from WorkerID) {
	_, wasBusy := s.busy[from]
	delete(s.free, from)
	delete(s.busy, from)
	delete(s.prewarmed, from)
	delete(s.proxies, from)
	if wasBusy {
		s.feed.Processed()
	}
}

// handleRescheduleJob removes the sender from free and busy without
// notifying the feed: no capacity change, the job was already re-sent by
// the proxy itself.
func (s *Supervisor) handleRescheduleJob(from WorkerID) {
	delete(s.free, from)
	delete(s.busy, from)
}
