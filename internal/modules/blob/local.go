package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores blobs as flat files under one directory, one file per id.
type Local struct {
	dir string
}

// NewLocal creates the directory if absent and returns the store.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %q: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(id string) string {
	// ids are uuids generated by us; Base guards against traversal anyway
	return filepath.Join(l.dir, filepath.Base(id))
}

func (l *Local) Put(ctx context.Context, id string, r io.Reader) error {
	if r == nil {
		return nil
	}

	tmp, err := os.CreateTemp(l.dir, ".put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, l.path(id))
}

func (l *Local) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, id string) error {
	err := os.Remove(l.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
