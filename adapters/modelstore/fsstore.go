package modelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"edupulse/domain/core"
	"edupulse/internal/errors"
	"edupulse/ports"
)

// FSStore persists model snapshots as JSON files in a directory, one file
// per (model id, kind) pair.
type FSStore struct {
	dir string
}

// NewFSStore creates a filesystem model store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

func (s *FSStore) path(id core.ModelID, kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", id.String(), kind))
}

// Save writes the snapshot, creating the directory if needed.
func (s *FSStore) Save(ctx context.Context, snapshot ports.ModelSnapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating model store directory")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encoding model snapshot")
	}
	path := s.path(snapshot.ModelID, snapshot.Kind)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing model snapshot %s", path)
	}
	return nil
}

// Load reads a snapshot. A missing file maps to core.ErrNotFound so callers
// can treat it as the non-fatal "no saved model" case.
func (s *FSStore) Load(ctx context.Context, id core.ModelID, kind string) (ports.ModelSnapshot, error) {
	data, err := os.ReadFile(s.path(id, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return ports.ModelSnapshot{}, core.NewNotFoundError("model snapshot", id.String())
		}
		return ports.ModelSnapshot{}, errors.Wrapf(err, "reading model snapshot %s", id)
	}
	var snapshot ports.ModelSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return ports.ModelSnapshot{}, errors.Wrapf(err, "decoding model snapshot %s", id)
	}
	return snapshot, nil
}
