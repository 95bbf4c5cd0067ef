package deploy

import (
	"fmt"
	"time"

	"github.com/cuemby/invoker/pkg/events"
	"github.com/cuemby/invoker/pkg/log"
	"github.com/cuemby/invoker/pkg/manager"
	"github.com/cuemby/invoker/pkg/types"
	"github.com/rs/zerolog"
)

// Deployer publishes a new action revision to the cluster: it persists
// the manifest via the manager (replicated by Raft) and then announces
// the change on the event broker so worker nodes can evict stale
// WarmedData for that action lazily, the next time the Scheduling
// Policy would otherwise have reused it.
//
// There are no long-running service containers to roll forward here, only
// an action manifest's Revision field, so there is no parallelism or delay
// to configure — a revision either exists or it doesn't.
type Deployer struct {
	manager *manager.Manager
	log     zerolog.Logger
}

// NewDeployer creates a new deployer.
func NewDeployer(mgr *manager.Manager) *Deployer {
	return &Deployer{manager: mgr, log: log.WithComponent("deploy")}
}

// Deploy registers manifest as the current revision of its action and
// notifies the cluster.
func (d *Deployer) Deploy(manifest *types.ActionManifest) error {
	if manifest.Namespace == "" || manifest.Name == "" {
		return fmt.Errorf("action manifest requires a namespace and name")
	}
	if manifest.Revision == "" {
		return fmt.Errorf("action manifest requires a revision")
	}

	manifest.UpdatedAt = time.Now()
	if err := d.manager.PutActionManifest(manifest); err != nil {
		return fmt.Errorf("failed to deploy %s: %w", manifest.FullyQualifiedName(), err)
	}

	d.log.Info().Str("action", manifest.FullyQualifiedName()).Str("revision", manifest.Revision).Msg("deployed")
	d.manager.PublishEvent(&events.Event{
		Type:     events.EventActionRevised,
		Message:  manifest.FullyQualifiedName(),
		Metadata: map[string]string{"revision": manifest.Revision},
	})
	return nil
}

// Remove deletes an action's manifest and notifies the cluster.
func (d *Deployer) Remove(fqn string) error {
	if err := d.manager.DeleteActionManifest(fqn); err != nil {
		return fmt.Errorf("failed to remove %s: %w", fqn, err)
	}
	d.log.Info().Str("action", fqn).Msg("removed")
	d.manager.PublishEvent(&events.Event{Type: events.EventActionDeleted, Message: fqn})
	return nil
}

// Status reports the currently deployed revision of an action, for the
// CLI's "invoker action status" command.
type Status struct {
	Namespace string
	Name      string
	Revision  string
	UpdatedAt time.Time
}

// Status returns the current deployment status of an action.
func (d *Deployer) Status(fqn string) (*Status, error) {
	manifest, err := d.manager.GetActionManifest(fqn)
	if err != nil {
		return nil, err
	}
	return &Status{
		Namespace: manifest.Namespace,
		Name:      manifest.Name,
		Revision:  manifest.Revision,
		UpdatedAt: manifest.UpdatedAt,
	}, nil
}
