package storage

import (
	"github.com/cuemby/invoker/pkg/types"
)

// Store defines the interface for cluster control-plane state storage,
// implemented by a BoltDB-backed store.
type Store interface {
	// Nodes
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id string) error

	// Action manifests
	PutActionManifest(manifest *types.ActionManifest) error
	GetActionManifest(fqn string) (*types.ActionManifest, error)
	ListActionManifests() ([]*types.ActionManifest, error)
	DeleteActionManifest(fqn string) error

	// Prewarm configuration
	PutPrewarmConfig(entries []*types.PrewarmConfigEntry) error
	ListPrewarmConfig() ([]*types.PrewarmConfigEntry, error)

	// Certificate authority material (encrypted at rest, see pkg/security)
	GetCA() ([]byte, error)
	SaveCA(data []byte) error

	// Utility
	Close() error
}
