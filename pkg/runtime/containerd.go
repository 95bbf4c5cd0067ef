package runtime

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	"github.com/cuemby/invoker/pkg/action"
	"github.com/cuemby/invoker/pkg/log"
	"github.com/cuemby/invoker/pkg/pool"
)

const (
	// DefaultNamespace is the containerd namespace every invoker-managed
	// container lives in.
	DefaultNamespace = "invoker"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// execEntrypoint is the well-known path an action image is expected to
	// expose for running a single activation; the image build step, out of
	// scope here, is responsible for putting it there.
	execEntrypoint = "/invoker/run"

	initDeadline = 10 * time.Second
	defaultRunTimeout = 60 * time.Second
	removeTimeout = 10 * time.Second
)

// ContainerdRuntime implements containerproxy.RuntimeDriver against a real
// containerd daemon. It treats action.ExecKind as the image reference to
// run and keeps exactly one containerd container (and, once started, one
// task) per Container Proxy, named after the proxy's pool.WorkerID.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	log       zerolog.Logger
}

// NewContainerdRuntime connects to the containerd daemon at socketPath (the
// default if empty).
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}
	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
		log:       log.WithComponent("runtime"),
	}, nil
}

// Close releases the containerd client connection.
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Create provisions a container for worker from kind's image reference,
// pulling it first if containerd has no cached copy.
func (r *ContainerdRuntime) Create(ctx context.Context, worker pool.WorkerID, kind action.ExecKind, memoryMB int64) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, string(kind))
	if err != nil {
		image, err = r.client.Pull(ctx, string(kind), containerd.WithPullUnpack)
		if err != nil {
			return "", fmt.Errorf("failed to pull image %s: %w", kind, err)
		}
	}

	id := string(worker)
	opts := []oci.SpecOpts{oci.WithImageConfig(image)}
	if memoryMB > 0 {
		limit := memoryMB * 1024 * 1024
		opts = append(opts, oci.WithMemoryLimit(uint64(limit)))
	}

	container, err := r.client.NewContainer(ctx, id,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(id+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", id, err)
	}
	return container.ID(), nil
}

// Init starts handle's task and waits for it to report Running, bringing it
// up to a warm, no-job-assigned state without executing any tenant code.
func (r *ContainerdRuntime) Init(ctx context.Context, handle string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", handle, err)
	}
	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task for %s: %w", handle, err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task for %s: %w", handle, err)
	}

	deadline := time.Now().Add(initDeadline)
	for {
		status, err := task.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to query task status for %s: %w", handle, err)
		}
		if status.Status == containerd.Running {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("container %s did not reach running before the init deadline", handle)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Execute runs run as a single exec process inside handle's task and waits
// for it to exit. An action's Timeout (milliseconds) bounds the exec; a
// non-zero exit or a timeout is reported as an error so the Container
// Proxy treats it as transient and reschedules the job.
func (r *ContainerdRuntime) Execute(ctx context.Context, handle string, run action.Run) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get task for %s: %w", handle, err)
	}

	timeout := defaultRunTimeout
	if run.Action.Timeout > 0 {
		timeout = time.Duration(run.Action.Timeout) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	process, err := task.Exec(execCtx, run.ActivationID, &specs.Process{
		Args: []string{execEntrypoint, run.ActivationID},
		Env: []string{
			"INVOKER_ACTIVATION_ID=" + run.ActivationID,
			"INVOKER_ACTION=" + run.Action.FullyQualifiedName(),
			"INVOKER_TENANT=" + string(run.Tenant),
		},
		Cwd: "/",
	}, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to exec activation %s: %w", run.ActivationID, err)
	}
	defer process.Delete(ctx)

	if err := process.Start(execCtx); err != nil {
		return fmt.Errorf("failed to start activation %s: %w", run.ActivationID, err)
	}

	statusC, err := process.Wait(execCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for activation %s: %w", run.ActivationID, err)
	}

	select {
	case status := <-statusC:
		if status.ExitCode() != 0 {
			return fmt.Errorf("activation %s exited %d", run.ActivationID, status.ExitCode())
		}
		return nil
	case <-execCtx.Done():
		_ = process.Kill(ctx, syscall.SIGKILL)
		return fmt.Errorf("activation %s timed out after %s", run.ActivationID, timeout)
	}
}

// Pause suspends handle's task, backing the idle-suspension policy.
func (r *ContainerdRuntime) Pause(ctx context.Context, handle string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	task, err := r.loadTask(ctx, handle)
	if err != nil {
		return err
	}
	return task.Pause(ctx)
}

// Resume unsuspends handle's task.
func (r *ContainerdRuntime) Resume(ctx context.Context, handle string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	task, err := r.loadTask(ctx, handle)
	if err != nil {
		return err
	}
	return task.Resume(ctx)
}

// Remove tears handle's task and container down. Safe to call on a handle
// that never finished initializing, or that has already been removed.
func (r *ContainerdRuntime) Remove(ctx context.Context, handle string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return nil
	}

	if task, err := container.Task(ctx, nil); err == nil {
		_ = task.Kill(ctx, syscall.SIGKILL)
		stopCtx, cancel := context.WithTimeout(ctx, removeTimeout)
		if statusC, werr := task.Wait(stopCtx); werr == nil {
			select {
			case <-statusC:
			case <-stopCtx.Done():
			}
		}
		cancel()
		if _, err := task.Delete(ctx); err != nil {
			r.log.Warn().Err(err).Str("handle", handle).Msg("failed to delete task")
		}
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container %s: %w", handle, err)
	}
	return nil
}

func (r *ContainerdRuntime) loadTask(ctx context.Context, handle string) (containerd.Task, error) {
	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get task for %s: %w", handle, err)
	}
	return task, nil
}
