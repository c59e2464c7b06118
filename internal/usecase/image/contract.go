package image

import (
	"context"

	"image-server/internal/domain"
	repoImage "image-server/internal/repository/image"
)

type artifactStore interface {
	Validate(a *domain.Artifact) error
	PathFor(id, originalName string) string
	Save(ctx context.Context, a *domain.Artifact, path string) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type thumbnailGenerator interface {
	CreateThumbnail(ctx context.Context, sourcePath, destPath string, width, height int) (string, error)
}

type unitOfWorkFactory interface {
	Begin() repoImage.UnitOfWork
}

type thumbnailQueue interface {
	Publish(ctx context.Context, task *domain.ThumbnailTask) error
}
