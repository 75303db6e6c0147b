package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sifan077/PowerLink/internal/app/repository"
)

// Slot keeps the link list in a single JSON file. Writes go to a temp file
// in the same directory and are renamed into place.
type Slot struct {
	path string
}

// NewSlot returns a slot stored at path. The parent directory is created on
// first save.
func NewSlot(path string) *Slot {
	return &Slot{path: path}
}

// Path returns the backing file.
func (s *Slot) Path() string {
	return s.path
}

func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	return data, nil
}

func (s *Slot) Save(ctx context.Context, payload []byte, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if expiresAt.IsZero() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("filestore: remove %s: %w", s.path, err)
		}
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}
