// Package local keeps artifacts on a directory of the local filesystem.
// Writes go to a temp file that is fsynced and renamed into place, so a
// reader never sees a partially written artifact.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"image-server/internal/domain"
	"image-server/internal/repository/image"

	"github.com/wb-go/wbf/zlog"
)

type FileRepository struct {
	*image.Policy
	root   string
	logger *zlog.Zerolog
}

func NewFileRepository(root string, policy *image.Policy, logger *zlog.Zerolog) (*FileRepository, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}

	return &FileRepository{
		Policy: policy,
		root:   root,
		logger: logger,
	}, nil
}

func (r *FileRepository) Root() string {
	return r.root
}

func (r *FileRepository) Save(ctx context.Context, a *domain.Artifact, path string) error {
	return r.Put(ctx, path, bytes.NewReader(a.Content), int64(len(a.Content)), a.ContentType)
}

func (r *FileRepository) Put(ctx context.Context, path string, data io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", image.ErrStorage, err)
	}

	fullPath, err := r.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", image.ErrStorage, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file for %s: %w", image.ErrStorage, path, err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %w", image.ErrStorage, path, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync %s: %w", image.ErrStorage, path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %w", image.ErrStorage, path, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into %s: %w", image.ErrStorage, path, err)
	}

	r.logger.Debug().
		Str("path", path).
		Int64("size", written).
		Str("content_type", contentType).
		Msg("Artifact written")

	return nil
}

func (r *FileRepository) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", image.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", image.ErrStorage, path, err)
	}
	return f, nil
}

func (r *FileRepository) Exists(ctx context.Context, path string) (bool, error) {
	fullPath, err := r.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", image.ErrStorage, path, err)
	}
	return !info.IsDir(), nil
}

// Delete removes the artifact at path. A missing artifact is not an error.
func (r *FileRepository) Delete(ctx context.Context, path string) error {
	fullPath, err := r.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", image.ErrStorage, path, err)
	}

	r.logger.Debug().Str("path", path).Msg("Artifact deleted")
	return nil
}

func (r *FileRepository) resolve(path string) (string, error) {
	clean := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: invalid artifact path %q", image.ErrStorage, path)
	}
	return filepath.Join(r.root, clean), nil
}
