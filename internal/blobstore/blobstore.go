// Package blobstore persists evidence frame images for the server tier
// (spec.md §4.9 supplement, component C9's image half). The local
// filesystem store is the required primary; an optional MinIO mirror
// (adapted from the edge-side snapshot uploader) can run alongside it.
package blobstore

import (
	"context"
	"log"
	"os"
	"path/filepath"
)

// Store persists one JPEG frame per evidence id.
type Store interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// LocalStore writes directly to a directory on disk, the required primary
// store: intake must succeed even with no object-storage backend
// configured.
type LocalStore struct {
	Dir string
}

func NewLocal(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Save(ctx context.Context, id string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(id), data, 0o644)
}

func (s *LocalStore) Load(ctx context.Context, id string) ([]byte, error) {
	return os.ReadFile(s.path(id))
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.Dir, id+".jpg")
}

// MirroredStore writes to a required primary and best-effort to an
// optional secondary, logging (never failing) on secondary errors.
type MirroredStore struct {
	Primary   Store
	Secondary Store // may be nil
}

func (s *MirroredStore) Save(ctx context.Context, id string, data []byte) error {
	if err := s.Primary.Save(ctx, id, data); err != nil {
		return err
	}
	if s.Secondary != nil {
		if err := s.Secondary.Save(ctx, id, data); err != nil {
			log.Printf("[blobstore] secondary mirror save failed for %s: %v", id, err)
		}
	}
	return nil
}

func (s *MirroredStore) Load(ctx context.Context, id string) ([]byte, error) {
	return s.Primary.Load(ctx, id)
}

func (s *MirroredStore) Delete(ctx context.Context, id string) error {
	if s.Secondary != nil {
		s.Secondary.Delete(ctx, id)
	}
	return s.Primary.Delete(ctx, id)
}
