package processor

import (
	"context"
	"io"
)

type artifactStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, data io.Reader, size int64, contentType string) error
}
