package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/invoker/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNodes           = []byte("nodes")
	bucketActionManifests = []byte("action_manifests")
	bucketPrewarmConfig   = []byte("prewarm_config")
	bucketCA              = []byte("ca")
)

// prewarmConfigKey is the single key the whole prewarm configuration slice
// is stored under — it is replaced wholesale on every put, matching how
// the Prewarm Manager re-reads it in full on every action.revised event.
var prewarmConfigKey = []byte("prewarm_config")

// BoltStore implements Store using an embedded BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "invoker.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketNodes, bucketActionManifests, bucketPrewarmConfig, bucketCA}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Node operations ---

func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNodes).Put([]byte(node.ID), data)
	})
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node not found: %s", id)
		}
		return json.Unmarshal(data, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.Node) error {
	return s.CreateNode(node)
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(id))
	})
}

// --- Action manifest operations ---

func (s *BoltStore) PutActionManifest(manifest *types.ActionManifest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketActionManifests).Put([]byte(manifest.FullyQualifiedName()), data)
	})
}

func (s *BoltStore) GetActionManifest(fqn string) (*types.ActionManifest, error) {
	var manifest types.ActionManifest
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketActionManifests).Get([]byte(fqn))
		if data == nil {
			return fmt.Errorf("action manifest not found: %s", fqn)
		}
		return json.Unmarshal(data, &manifest)
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (s *BoltStore) ListActionManifests() ([]*types.ActionManifest, error) {
	var manifests []*types.ActionManifest
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActionManifests).ForEach(func(k, v []byte) error {
			var manifest types.ActionManifest
			if err := json.Unmarshal(v, &manifest); err != nil {
				return err
			}
			manifests = append(manifests, &manifest)
			return nil
		})
	})
	return manifests, err
}

func (s *BoltStore) DeleteActionManifest(fqn string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActionManifests).Delete([]byte(fqn))
	})
}

// --- Prewarm configuration ---

func (s *BoltStore) PutPrewarmConfig(entries []*types.PrewarmConfigEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPrewarmConfig).Put(prewarmConfigKey, data)
	})
}

func (s *BoltStore) ListPrewarmConfig() ([]*types.PrewarmConfigEntry, error) {
	var entries []*types.PrewarmConfigEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPrewarmConfig).Get(prewarmConfigKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &entries)
	})
	return entries, err
}

// --- Certificate authority ---

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte("ca"), data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get([]byte("ca"))
		if v == nil {
			return fmt.Errorf("CA not found")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}
