package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"image-server/internal/config"
	"image-server/internal/domain"
	"image-server/internal/repository/image"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const codeNoSuchKey = "NoSuchKey"

type FileRepository struct {
	*image.Policy
	client  *minio.Client
	bucket  string
	retries retry.Strategy
	logger  *zlog.Zerolog
}

func NewMinIORepository(ctx context.Context, cfg *config.Config, policy *image.Policy, retries retry.Strategy, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
		Region: cfg.MinIO.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	repo := &FileRepository{
		Policy:  policy,
		client:  client,
		bucket:  cfg.MinIO.Bucket,
		retries: retries,
		logger:  logger,
	}

	if err := repo.ensureBucket(ctx, cfg.MinIO.Region); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context, region string) error {
	var exists bool
	err := retry.Do(func() error {
		var err error
		exists, err = r.client.BucketExists(ctx, r.bucket)
		return err
	}, r.retries)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", r.bucket, err)
	}

	if exists {
		return nil
	}

	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
	}

	r.logger.Info().Str("bucket", r.bucket).Msg("Bucket created")
	return nil
}

func (r *FileRepository) Save(ctx context.Context, a *domain.Artifact, path string) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = image.ContentTypeFor(path)
	}
	return r.Put(ctx, path, bytes.NewReader(a.Content), int64(len(a.Content)), contentType)
}

func (r *FileRepository) Put(ctx context.Context, path string, data io.Reader, size int64, contentType string) error {
	info, err := r.client.PutObject(ctx, r.bucket, path, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to put object")
		return fmt.Errorf("%w: put %s: %w", image.ErrStorage, path, err)
	}

	r.logger.Debug().
		Str("path", path).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Msg("Object stored")

	return nil
}

func (r *FileRepository) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := r.stat(ctx, path); err != nil {
		return nil, err
	}

	obj, err := r.client.GetObject(ctx, r.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", image.ErrStorage, path, err)
	}
	return obj, nil
}

func (r *FileRepository) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the object at path. S3 semantics already make removal of a
// missing key a no-op.
func (r *FileRepository) Delete(ctx context.Context, path string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %w", image.ErrStorage, path, err)
	}
	return nil
}

func (r *FileRepository) stat(ctx context.Context, path string) (minio.ObjectInfo, error) {
	var info minio.ObjectInfo
	err := retry.Do(func() error {
		var err error
		info, err = r.client.StatObject(ctx, r.bucket, path, minio.StatObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil
		}
		return err
	}, r.retries)
	if err != nil {
		return info, fmt.Errorf("%w: stat %s: %w", image.ErrStorage, path, err)
	}
	if info.Key == "" {
		return info, fmt.Errorf("%w: %s", image.ErrFileNotFound, path)
	}
	return info, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, image.ErrFileNotFound)
}
