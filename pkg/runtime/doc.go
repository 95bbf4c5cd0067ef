/*
Package runtime provides the containerd-backed implementation of
containerproxy.RuntimeDriver: creating, initializing, executing,
pausing/resuming, and removing the containers a Container Proxy commands.

ContainerdRuntime treats action.ExecKind as an image reference and keeps a
single containerd container per pool.WorkerID, named after it. Create pulls
the image if containerd has no cached copy; Init starts the task and waits
for it to report Running; Execute runs one activation as an exec process
against the task's entrypoint and bounds it by the action's Timeout.

All calls run inside the "invoker" containerd namespace so this daemon's
containers never collide with any other containerd tenant on the host.
*/
package runtime
