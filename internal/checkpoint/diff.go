package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/wronai/taskguard/pkg/cerr"
)

// Diff renders a unified diff between the checkpointed version of path and
// the current working copy. An empty id diffs against the latest checkpoint.
func (m *Manager) Diff(ctx context.Context, id, path string) (string, error) {
	var manifest *Manifest
	var err error
	if id == "" {
		manifest, err = m.Latest(ctx)
		if err != nil {
			return "", err
		}
		if manifest == nil {
			return "", cerr.NewError(cerr.NotFound, "no checkpoints exist", nil)
		}
	} else {
		manifest, err = m.load(ctx, id)
		if err != nil {
			return "", err
		}
	}
	var hash string
	for _, f := range manifest.Files {
		if f.Path == path {
			hash = f.Hash
			break
		}
	}
	if hash == "" {
		return "", cerr.NewError(cerr.NotFound,
			fmt.Sprintf("%s is not part of checkpoint %s", path, manifest.ID), nil)
	}
	before, err := m.storage.Read(ctx, objectPrefix+hash)
	if err != nil {
		return "", cerr.WrapStorageReadError("checkpoint object "+hash, err)
	}
	after, err := os.ReadFile(filepath.Join(m.root, path))
	if err != nil && !os.IsNotExist(err) {
		return "", cerr.NewError(cerr.Internal, "failed to read "+path, err)
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: manifest.ID + "/" + path,
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
