// Package action defines the descriptors the pool schedules against: the
// Action manifest, the inbound Run request, and the envelope the Container
// Proxy hands to a running container.
package action

import "fmt"

// ExecKind identifies a container image/runtime combination. Two actions
// with the same Name but different Revision or ExecKind are never
// interchangeable for reuse purposes.
type ExecKind string

// Action is the scheduling-relevant subset of an action manifest: enough to
// decide whether an existing WarmedData container can serve a Run, and
// enough to start a cold one if not. Code package bytes are never part of
// this descriptor.
type Action struct {
	Namespace string
	Name      string
	Revision  string
	Kind      ExecKind
	MemoryMB  int64
	Timeout   int64 // milliseconds
}

// FullyQualifiedName is the namespace/name pair actions are looked up by.
func (a Action) FullyQualifiedName() string {
	return fmt.Sprintf("%s/%s", a.Namespace, a.Name)
}

// Matches reports whether two Action descriptors identify the same
// revision of the same action with the same resource shape. Two actions
// that differ only by revision are, by design, never considered the same
// action for reuse: a WarmedData container backing an old revision must
// not serve a Run naming the new one.
func (a Action) Matches(other Action) bool {
	return a.Namespace == other.Namespace &&
		a.Name == other.Name &&
		a.Revision == other.Revision &&
		a.Kind == other.Kind &&
		a.MemoryMB == other.MemoryMB
}

// Tenant identifies the namespace a Run is billed and isolated against.
// Kept distinct from Action.Namespace in the type system even though they
// carry the same value today, so a future multi-namespace-per-tenant model
// doesn't require touching the scheduling policy's signature.
type Tenant string

// Run is one invocation request arriving off the Feed Adapter.
type Run struct {
	ActivationID string
	Action       Action
	Tenant       Tenant
	Args         []byte // opaque activation payload, never inspected by the pool
}

// ActivationMessage is what a Container Proxy delivers to the container
// once it has a worker assigned: the Run plus the deadline the container
// must answer by.
type ActivationMessage struct {
	Run           Run
	DeadlineUnix  int64 // unix millis
}
