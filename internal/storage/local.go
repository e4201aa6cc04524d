package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts on the server filesystem, the layout the
// single-node deployment uses.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	// write to a temp name, rename on success so a half-written artifact is
	// never visible under its final name
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return objectName, nil
}

func (s *LocalStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.FromSlash(objectName)))
}

func (s *LocalStore) Delete(ctx context.Context, objectName string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(objectName)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
