package image

import (
	"context"
	"io"

	"image-server/internal/domain"
)

type imageUsecase interface {
	UploadImage(ctx context.Context, base domain.BaseURL, name string, a *domain.Artifact) (*domain.ImageView, error)
	ListImages(ctx context.Context, base domain.BaseURL, page, pageSize int) (*domain.ImagePage, error)
	GetImage(ctx context.Context, id string) (*domain.StoredFile, error)
	GetThumbnail(ctx context.Context, id string) (*domain.StoredFile, error)
	GetImageDetails(ctx context.Context, base domain.BaseURL, id string) (*domain.ImageDetails, error)
	UpdateImage(ctx context.Context, base domain.BaseURL, id, name string, a *domain.Artifact) (*domain.ImageView, error)
	DeleteImage(ctx context.Context, id string) error
	DeleteAllImages(ctx context.Context) (*domain.PurgeResult, error)
}

type artifactReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
