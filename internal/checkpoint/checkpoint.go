package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/storage"
)

const (
	manifestPrefix = "checkpoints/"
	objectPrefix   = "checkpoints/objects/"
)

// FileEntry is one backed-up file inside a checkpoint.
type FileEntry struct {
	Path string `yaml:"path"`
	Hash string `yaml:"hash"`
}

// Manifest describes one checkpoint. File content is stored content-addressed
// under its sha256, so unchanged files cost nothing across checkpoints.
type Manifest struct {
	ID        string      `yaml:"id"`
	CreatedAt time.Time   `yaml:"created_at"`
	Command   string      `yaml:"command,omitempty"`
	Files     []FileEntry `yaml:"files"`
}

// Manager creates and restores reversible backups of working-tree files.
type Manager struct {
	storage storage.Storage
	root    string
	now     func() time.Time
}

// NewManager builds a manager for the working directory root, persisting
// checkpoints through the storage backend.
func NewManager(st storage.Storage, root string) *Manager {
	return &Manager{storage: st, root: root, now: time.Now}
}

// Create backs up the given working-tree paths before a command runs. Paths
// that do not exist yet are skipped; if nothing exists to back up, no
// checkpoint is written and (nil, nil) is returned.
func (m *Manager) Create(ctx context.Context, command string, paths []string) (*Manifest, error) {
	manifest := &Manifest{
		ID:        ulid.Make().String(),
		CreatedAt: m.now(),
		Command:   command,
	}
	for _, path := range paths {
		content, err := os.ReadFile(filepath.Join(m.root, path))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, cerr.NewError(cerr.Internal, "failed to read "+path, err)
		}
		sum := sha256.Sum256(content)
		hash := hex.EncodeToString(sum[:])
		key := objectPrefix + hash
		exists, err := m.storage.Exists(ctx, key)
		if err != nil {
			return nil, cerr.WrapStorageReadError("checkpoint object", err)
		}
		if !exists {
			if err := m.storage.Write(ctx, key, content); err != nil {
				return nil, cerr.WrapStorageWriteError("checkpoint object", err)
			}
		}
		manifest.Files = append(manifest.Files, FileEntry{Path: path, Hash: hash})
	}
	if len(manifest.Files) == 0 {
		return nil, nil
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to marshal checkpoint manifest", err)
	}
	if err := m.storage.Write(ctx, manifestPrefix+manifest.ID+".yaml", data); err != nil {
		return nil, cerr.WrapStorageWriteError("checkpoint manifest", err)
	}
	return manifest, nil
}

// List returns all checkpoints, oldest first. ULIDs sort chronologically.
func (m *Manager) List(ctx context.Context) ([]*Manifest, error) {
	keys, err := m.storage.List(ctx, manifestPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("checkpoints", err)
	}
	var manifests []*Manifest
	for _, key := range keys {
		if strings.HasPrefix(key, objectPrefix) || !strings.HasSuffix(key, ".yaml") {
			continue
		}
		mf, err := m.load(ctx, strings.TrimSuffix(strings.TrimPrefix(key, manifestPrefix), ".yaml"))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, mf)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].ID < manifests[j].ID })
	return manifests, nil
}

// Latest returns the most recent checkpoint, or nil when none exist.
func (m *Manager) Latest(ctx context.Context) (*Manifest, error) {
	manifests, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, nil
	}
	return manifests[len(manifests)-1], nil
}

// Restore writes the checkpointed content of every file back into the
// working tree. An empty id restores the latest checkpoint. The restored
// paths are returned.
func (m *Manager) Restore(ctx context.Context, id string) ([]string, error) {
	var manifest *Manifest
	var err error
	if id == "" {
		manifest, err = m.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if manifest == nil {
			return nil, cerr.NewError(cerr.NotFound, "no checkpoints exist", nil)
		}
	} else {
		manifest, err = m.load(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	var restored []string
	for _, f := range manifest.Files {
		content, err := m.storage.Read(ctx, objectPrefix+f.Hash)
		if err != nil {
			return nil, cerr.WrapStorageReadError("checkpoint object "+f.Hash, err)
		}
		target := filepath.Join(m.root, f.Path)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, cerr.NewError(cerr.Internal, "failed to restore "+f.Path, err)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return nil, cerr.NewError(cerr.Internal, "failed to restore "+f.Path, err)
		}
		restored = append(restored, f.Path)
	}
	return restored, nil
}

func (m *Manager) load(ctx context.Context, id string) (*Manifest, error) {
	data, err := m.storage.Read(ctx, manifestPrefix+id+".yaml")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("checkpoint %s not found", id), nil)
		}
		return nil, cerr.WrapStorageReadError("checkpoint manifest", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, cerr.NewError(cerr.Validation, "malformed checkpoint manifest", err)
	}
	return &manifest, nil
}
