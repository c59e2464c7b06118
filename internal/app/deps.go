package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"image-server/internal/config"
	"image-server/internal/domain"
	repoImage "image-server/internal/repository/image"
	minio_repo "image-server/internal/repository/image/cloud/minio"
	postgres_repo "image-server/internal/repository/image/db/postgres"
	sqlite_repo "image-server/internal/repository/image/db/sqlite"
	local_repo "image-server/internal/repository/image/fs/local"
	image_uc "image-server/internal/usecase/image"
	"image-server/internal/usecase/processor"

	"github.com/wb-go/wbf/zlog"
)

// ArtifactStore is what both storage backends provide.
type ArtifactStore interface {
	Validate(a *domain.Artifact) error
	PathFor(id, originalName string) string
	Save(ctx context.Context, a *domain.Artifact, path string) error
	Put(ctx context.Context, path string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

type ThumbnailQueue interface {
	Publish(ctx context.Context, task *domain.ThumbnailTask) error
}

type metadataStore interface {
	Ping(ctx context.Context) error
	Close() error
}

// Deps is the object graph shared by the server, the worker and the CLI.
type Deps struct {
	Store  ArtifactStore
	Images *image_uc.ImageUsecase
	DB     metadataStore
}

// BuildDeps connects storage and the metadata database and wires the image
// coordinator. queue may be nil.
func BuildDeps(ctx context.Context, cfg *config.Config, queue ThumbnailQueue, logger *zlog.Zerolog) (*Deps, error) {
	retries := cfg.DefaultRetryStrategy()
	policy := repoImage.NewPolicy(cfg.Storage.MaxFileSize, cfg.Storage.AllowedExtensions)

	var store ArtifactStore
	switch cfg.Storage.Backend {
	case config.StorageMinIO:
		s, err := minio_repo.NewMinIORepository(ctx, cfg, policy, retries, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio repository: %w", err)
		}
		store = s
	default:
		s, err := local_repo.NewFileRepository(cfg.Storage.Root, policy, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file repository: %w", err)
		}
		store = s
	}

	var (
		db        metadataStore
		uowSource interface {
			Begin() repoImage.UnitOfWork
		}
	)
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DB.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		repo, err := sqlite_repo.Open(ctx, cfg.DB.SQLitePath)
		if err != nil {
			return nil, err
		}
		db, uowSource = repo, repo.NewUnitOfWorkFactory()
	default:
		pg, err := postgres_repo.Open(cfg)
		if err != nil {
			return nil, err
		}
		repo := postgres_repo.NewImagesRepository(pg, retries)
		if err := repo.Migrate(logger); err != nil {
			repo.Close()
			return nil, err
		}
		db, uowSource = repo, repo.NewUnitOfWorkFactory()
	}

	thumbnails, err := processor.NewThumbnailGenerator(store, processor.Options{
		CropToFit:         cfg.Thumbnail.CropToFit,
		WatermarkText:     cfg.Thumbnail.WatermarkText,
		WatermarkSize:     cfg.Thumbnail.WatermarkSize,
		WatermarkPosition: cfg.Thumbnail.WatermarkPosition,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	images := image_uc.NewImageUsecase(
		store,
		thumbnails,
		uowSource,
		queue,
		image_uc.ThumbnailSize{Width: cfg.Thumbnail.Width, Height: cfg.Thumbnail.Height},
		logger,
	)

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("db", cfg.DB.Driver).
		Bool("queue", queue != nil).
		Msg("Dependencies ready")

	return &Deps{
		Store:  store,
		Images: images,
		DB:     db,
	}, nil
}

func (d *Deps) Close() error {
	var errs []error
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
