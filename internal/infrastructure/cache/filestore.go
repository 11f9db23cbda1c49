package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// ErrMiss is returned by Get when nothing is stored under the name.
var ErrMiss = ports.ErrMiss

// FileStore keeps payloads as files in one directory. Entries are written
// once and never expire; reads go through an in-process layer so repeated
// lookups during a run do not touch the disk.
type FileStore struct {
	dir string
	hot *gocache.Cache
}

var _ ports.PayloadStore = (*FileStore)(nil)

// NewFileStore does not create dir until the first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir: dir,
		hot: gocache.New(gocache.NoExpiration, 0),
	}
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path used for name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Get returns the stored payload or ErrMiss.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	if v, ok := s.hot.Get(name); ok {
		if payload, ok := v.([]byte); ok {
			return clone(payload), nil
		}
	}

	payload, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, domain.IOFailure("read cache", err)
	}

	s.hot.Set(name, clone(payload), gocache.NoExpiration)
	return payload, nil
}

// Put writes the payload atomically; concurrent writers of the same name
// end with one complete file (last writer wins).
func (s *FileStore) Put(ctx context.Context, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return domain.IOFailure("create cache dir", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return domain.IOFailure("write cache", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return domain.IOFailure("write cache", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return domain.IOFailure("write cache", err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		_ = os.Remove(tmpName)
		return domain.IOFailure("write cache", err)
	}

	s.hot.Set(name, clone(payload), gocache.NoExpiration)
	return nil
}

// Forget drops name from the in-process layer only; the file stays.
func (s *FileStore) Forget(name string) {
	s.hot.Delete(name)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("cache: invalid entry name %q", name)
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
