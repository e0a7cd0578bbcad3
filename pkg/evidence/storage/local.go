package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"custodia-hq/custodia/pkg/evidence"
)

// retentionDir is the sidecar directory holding per-pack retention
// metadata next to the packs themselves.
const retentionDir = ".retention"

// PackSuffix is the directory suffix for persisted evidence packs.
const PackSuffix = ".evp"

// Local stores evidence packs as directories under a root path, with
// retention metadata in a .retention/ sidecar so the pack contents
// stay byte-identical to what was persisted.
type Local struct {
	root string
	mu   sync.Mutex
}

// localSidecar is the on-disk sidecar format.
type localSidecar struct {
	Metadata       Metadata  `json:"metadata"`
	ImmutableUntil time.Time `json:"immutableUntil,omitempty"`
}

// NewLocal creates a Local backend rooted at dir, creating it and the
// sidecar directory as needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, evidence.NewValidationError("dir", "storage root is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, retentionDir), 0o755); err != nil {
		return nil, evidence.NewStorageError("local", "init", err)
	}
	return &Local{root: dir}, nil
}

// PackPath returns where a pack with the given id lives.
func (l *Local) PackPath(id string) string {
	return filepath.Join(l.root, id+PackSuffix)
}

func (l *Local) sidecarPath(id string) string {
	return filepath.Join(l.root, retentionDir, id+".json")
}

// Exists reports whether the pack directory is present.
func (l *Local) Exists(ctx context.Context, id string) (bool, error) {
	_, err := os.Stat(l.PackPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, evidence.NewStorageError("local", "stat", err)
}

// GetMetadata returns the pack's retention metadata.
func (l *Local) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc, err := l.readSidecar(id)
	if err != nil {
		return nil, err
	}
	return sc.Metadata, nil
}

// SetMetadata replaces the pack's retention metadata.
func (l *Local) SetMetadata(ctx context.Context, id string, md Metadata) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok, err := l.exists(id); err != nil {
		return err
	} else if !ok {
		return evidence.NewNotFoundError("pack", id)
	}

	sc, err := l.readSidecar(id)
	if err != nil {
		if _, notFound := err.(*evidence.NotFoundError); !notFound {
			return err
		}
		sc = &localSidecar{}
	}
	sc.Metadata = md
	return l.writeSidecar(id, sc)
}

// SetImmutableUntil extends the pack's immutability window. Shrinking
// an existing window is rejected.
func (l *Local) SetImmutableUntil(ctx context.Context, id string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok, err := l.exists(id); err != nil {
		return err
	} else if !ok {
		return evidence.NewNotFoundError("pack", id)
	}

	sc, err := l.readSidecar(id)
	if err != nil {
		if _, notFound := err.(*evidence.NotFoundError); !notFound {
			return err
		}
		sc = &localSidecar{}
	}
	if !sc.ImmutableUntil.IsZero() && until.Before(sc.ImmutableUntil) {
		return evidence.NewStorageError("local", "set_immutable",
			fmt.Errorf("immutability window can only be extended (current %s)", sc.ImmutableUntil.Format(time.RFC3339)))
	}
	sc.ImmutableUntil = until
	return l.writeSidecar(id, sc)
}

// RestoreImmutableUntil resets the pack's immutability window,
// shrinking it if needed. A zero until clears the lock.
func (l *Local) RestoreImmutableUntil(ctx context.Context, id string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok, err := l.exists(id); err != nil {
		return err
	} else if !ok {
		return evidence.NewNotFoundError("pack", id)
	}

	sc, err := l.readSidecar(id)
	if err != nil {
		if _, notFound := err.(*evidence.NotFoundError); !notFound {
			return err
		}
		sc = &localSidecar{}
	}
	sc.ImmutableUntil = until
	return l.writeSidecar(id, sc)
}

// CheckImmutable reports the pack's current immutability state.
func (l *Local) CheckImmutable(ctx context.Context, id string) (bool, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sc, err := l.readSidecar(id)
	if err != nil {
		if _, notFound := err.(*evidence.NotFoundError); notFound {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	if sc.ImmutableUntil.IsZero() || time.Now().After(sc.ImmutableUntil) {
		return false, sc.ImmutableUntil, nil
	}
	return true, sc.ImmutableUntil, nil
}

// Delete removes the pack directory and its sidecar. Immutable packs
// are not deletable.
func (l *Local) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ok, err := l.exists(id); err != nil {
		return err
	} else if !ok {
		return evidence.NewNotFoundError("pack", id)
	}

	sc, err := l.readSidecar(id)
	if err == nil && !sc.ImmutableUntil.IsZero() && time.Now().Before(sc.ImmutableUntil) {
		return evidence.NewStorageError("local", "delete",
			fmt.Errorf("pack is immutable until %s", sc.ImmutableUntil.Format(time.RFC3339)))
	}

	if err := os.RemoveAll(l.PackPath(id)); err != nil {
		return evidence.NewStorageError("local", "delete", err)
	}
	if err := os.Remove(l.sidecarPath(id)); err != nil && !os.IsNotExist(err) {
		return evidence.NewStorageError("local", "delete", err)
	}
	return nil
}

func (l *Local) exists(id string) (bool, error) {
	_, err := os.Stat(l.PackPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, evidence.NewStorageError("local", "stat", err)
}

func (l *Local) readSidecar(id string) (*localSidecar, error) {
	data, err := os.ReadFile(l.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, evidence.NewNotFoundError("retention", id)
		}
		return nil, evidence.NewStorageError("local", "read_metadata", err)
	}
	var sc localSidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, evidence.NewStorageError("local", "read_metadata", err)
	}
	return &sc, nil
}

func (l *Local) writeSidecar(id string, sc *localSidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return evidence.NewStorageError("local", "write_metadata", err)
	}
	tmp := l.sidecarPath(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return evidence.NewStorageError("local", "write_metadata", err)
	}
	if err := os.Rename(tmp, l.sidecarPath(id)); err != nil {
		return evidence.NewStorageError("local", "write_metadata", err)
	}
	return nil
}
