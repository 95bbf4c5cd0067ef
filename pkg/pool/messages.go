package pool

import (
	"time"

	"github.com/cuemby/invoker/pkg/action"
)

// MessageKind tags the five message shapes the Pool Supervisor accepts,
// per the component's message contract. A single tagged struct is used
// instead of an interface-per-message hierarchy, matching the tagged-
// variant convention used for ContainerData.
type MessageKind int

const (
	MsgRun MessageKind = iota
	MsgNeedWork
	MsgContainerRemoved
	MsgRescheduleJob
)

// SupervisorMessage is the envelope placed on the Pool Supervisor's inbox.
type SupervisorMessage struct {
	Kind MessageKind

	// Valid when Kind == MsgRun.
	Run             action.Run
	RetryLogDeadline *time.Time

	// Valid when Kind is MsgNeedWork, MsgContainerRemoved, or
	// MsgRescheduleJob: identifies the originating Container Proxy.
	From WorkerID

	// Valid when Kind == MsgNeedWork: the proxy's new idle state, either
	// WarmedData or PreWarmedData.
	Data ContainerData
}

// RunMessage builds the envelope for an incoming invocation request.
func RunMessage(r action.Run, deadline *time.Time) SupervisorMessage {
	return SupervisorMessage{Kind: MsgRun, Run: r, RetryLogDeadline: deadline}
}

// NeedWorkMessage builds the envelope a proxy sends when it becomes idle.
func NeedWorkMessage(from WorkerID, data ContainerData) SupervisorMessage {
	return SupervisorMessage{Kind: MsgNeedWork, From: from, Data: data}
}

// ContainerRemovedMessage builds the envelope a proxy sends on teardown.
func ContainerRemovedMessage(from WorkerID) SupervisorMessage {
	return SupervisorMessage{Kind: MsgContainerRemoved, From: from}
}

// RescheduleJobMessage builds the envelope a proxy sends when it could not
// execute its assigned job.
func RescheduleJobMessage(from WorkerID) SupervisorMessage {
	return SupervisorMessage{Kind: MsgRescheduleJob, From: from}
}

// ProxyMessageKind tags the three message shapes a Container Proxy accepts.
type ProxyMessageKind int

const (
	ProxyStart ProxyMessageKind = iota
	ProxyRun
	ProxyRemove
)

// ProxyMessage is the envelope placed on a Container Proxy's inbox.
type ProxyMessage struct {
	Kind ProxyMessageKind

	// Valid when Kind == ProxyStart.
	StartKind     action.ExecKind
	StartMemoryMB int64

	// Valid when Kind == ProxyRun.
	Run action.Run
}

func StartMessage(kind action.ExecKind, memoryMB int64) ProxyMessage {
	return ProxyMessage{Kind: ProxyStart, StartKind: kind, StartMemoryMB: memoryMB}
}

func RunJobMessage(r action.Run) ProxyMessage {
	return ProxyMessage{Kind: ProxyRun, Run: r}
}

func RemoveMessage() ProxyMessage {
	return ProxyMessage{Kind: ProxyRemove}
}

// ProxyHandle is the supervisor's view of a running Container Proxy: enough
// to hand it messages and to know which worker slot it occupies. The pool
// package never imports containerproxy — it is handed concrete handles
// through a Factory — so there is no import cycle between the supervisor
// and the per-container actor it drives.
type ProxyHandle interface {
	Send(msg ProxyMessage)
	Worker() WorkerID
}

// Factory creates a new Container Proxy bound to id, wired to deliver its
// outgoing messages on supervisorInbox.
type Factory func(id WorkerID, supervisorInbox chan<- SupervisorMessage) ProxyHandle
