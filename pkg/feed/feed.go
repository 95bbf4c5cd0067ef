// Package feed specifies the boundary between the pool and the upstream
// message source. Decoding wire messages into Run values — the broker
// client itself — is out of scope; this package only gives that boundary a
// Go shape the Pool Supervisor can consume without blocking.
package feed

import (
	"sync/atomic"

	"github.com/cuemby/invoker/pkg/action"
)

// Adapter is the contract a Pool Supervisor drives. Runs delivers one Run
// at a time for the supervisor to read; Processed is called by the
// supervisor once per unit of active capacity freed.
//
// The adapter, not the pool, owns backpressure: it MUST NOT have more than
// maxActiveContainers worth of unacknowledged Runs in flight. The bounded
// in-process Channel implementation below enforces this with a buffered
// channel sized to that bound; the buffer filling up is the backpressure
// signal propagating to whatever pushes Runs into the adapter.
type Adapter interface {
	// Runs returns the channel the supervisor reads incoming Run requests
	// from. Closing it (there is normally no reason to) stops new Runs
	// from being scheduled; in-flight work is unaffected.
	Runs() <-chan action.Run
	// Processed is called once per Run whose execution ended in either a
	// busy-to-idle NeedWork(WarmedData) transition or a ContainerRemoved
	// while busy — the conservation law the pool contract requires.
	Processed()
}

// Channel is a bounded, in-process feed.Adapter. Push is the producer side
// (called by whatever decodes wire messages upstream of the pool, entirely
// outside this package's scope); Runs/Processed is the consumer side the
// Pool Supervisor uses.
type Channel struct {
	runs        chan action.Run
	processedCt atomic.Int64
	onProcessed func()
}

// NewChannel builds a Channel whose buffer is exactly capacity — in
// practice maxActiveContainers, so the channel filling up is itself the
// pool's backpressure signal to the producer.
func NewChannel(capacity int) *Channel {
	return &Channel{
		runs: make(chan action.Run, capacity),
	}
}

// Push enqueues r for delivery to the supervisor. It blocks if the buffer
// is full, which is the intended backpressure behavior: the pool never
// pulls, the feed pushes, and a full buffer means the feed must hold the
// message (or refuse upstream ack) until capacity frees up.
func (c *Channel) Push(r action.Run) {
	c.runs <- r
}

// TryPush is the non-blocking variant: it reports whether r was enqueued.
func (c *Channel) TryPush(r action.Run) bool {
	select {
	case c.runs <- r:
		return true
	default:
		return false
	}
}

func (c *Channel) Runs() <-chan action.Run { return c.runs }

func (c *Channel) Processed() {
	c.processedCt.Add(1)
	if c.onProcessed != nil {
		c.onProcessed()
	}
}

// OnProcessed registers a callback invoked synchronously from Processed,
// letting a test or metrics collector observe freed-capacity accounting
// without polling a counter.
func (c *Channel) OnProcessed(fn func()) { c.onProcessed = fn }

// ProcessedCount reports the total number of Processed signals observed so
// far.
func (c *Channel) ProcessedCount() int64 { return c.processedCt.Load() }

// Pending reports how many Runs are currently buffered awaiting delivery.
func (c *Channel) Pending() int { return len(c.runs) }
