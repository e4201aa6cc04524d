package storage

import (
	"context"
	"io"
)

// Store holds finished artifacts. The path returned by Put is what the
// session registry records as artifact_path.
type Store interface {
	Put(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}
