// Package file persists role and board snapshots as JSON files, replacing
// each file atomically on every write.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

const (
	rolesFile = "roles.json"
	boardFile = "board.json"
)

// SnapshotRepository implements ports.RoleRepository and ports.BoardRepository
// on top of a data directory.
type SnapshotRepository struct {
	dir string
}

// NewSnapshotRepository creates dir if needed.
func NewSnapshotRepository(dir string) (*SnapshotRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &SnapshotRepository{dir: dir}, nil
}

func (r *SnapshotRepository) LoadRoles(_ context.Context) (domain.RoleSnapshot, error) {
	var snap domain.RoleSnapshot
	err := r.read(rolesFile, &snap)
	return snap, err
}

func (r *SnapshotRepository) SaveRoles(_ context.Context, snap domain.RoleSnapshot) error {
	return r.write(rolesFile, snap)
}

func (r *SnapshotRepository) LoadBoard(_ context.Context) (domain.BoardSnapshot, error) {
	var snap domain.BoardSnapshot
	err := r.read(boardFile, &snap)
	return snap, err
}

func (r *SnapshotRepository) SaveBoard(_ context.Context, snap domain.BoardSnapshot) error {
	return r.write(boardFile, snap)
}

// read decodes name into v. A missing file leaves v zero.
func (r *SnapshotRepository) read(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ports.ErrCorruptSnapshot, name, err)
	}
	return nil
}

func (r *SnapshotRepository) write(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeFileAtomic(filepath.Join(r.dir, name), b)
}

// writeFileAtomic writes to a temporary file in the same directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
