package image

import (
	"context"

	"image-server/internal/domain"
)

// UnitOfWork stages record mutations in memory and applies them atomically
// on Commit. Reads always observe committed state only.
type UnitOfWork interface {
	Add(img *domain.Image)
	Update(img *domain.Image)
	Remove(img *domain.Image)

	GetByID(ctx context.Context, id string) (*domain.Image, error)
	GetAll(ctx context.Context) ([]*domain.Image, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Image, error)
	Count(ctx context.Context) (int, error)

	Commit(ctx context.Context) (int64, error)
}
