package image

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"image-server/internal/domain"
	"image-server/internal/metrics"
	repoImage "image-server/internal/repository/image"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

type ThumbnailSize struct {
	Width  int
	Height int
}

// ImageUsecase keeps the original artifact, its thumbnail and the metadata
// record consistent. Every operation runs in its own unit of work and
// commits at most once.
type ImageUsecase struct {
	store      artifactStore
	thumbnails thumbnailGenerator
	uow        unitOfWorkFactory
	queue      thumbnailQueue
	size       ThumbnailSize
	logger     *zlog.Zerolog
}

// NewImageUsecase wires the coordinator. queue may be nil, in which case a
// failed thumbnail is only logged.
func NewImageUsecase(store artifactStore, thumbnails thumbnailGenerator, uow unitOfWorkFactory, queue thumbnailQueue, size ThumbnailSize, logger *zlog.Zerolog) *ImageUsecase {
	if size.Width <= 0 {
		size.Width = domain.DefaultThumbnailWidth
	}
	if size.Height <= 0 {
		size.Height = domain.DefaultThumbnailHeight
	}

	return &ImageUsecase{
		store:      store,
		thumbnails: thumbnails,
		uow:        uow,
		queue:      queue,
		size:       size,
		logger:     logger,
	}
}

func (i *ImageUsecase) UploadImage(ctx context.Context, base domain.BaseURL, name string, a *domain.Artifact) (view *domain.ImageView, err error) {
	defer observe("upload", &err)

	if err := i.store.Validate(a); err != nil {
		return nil, validationFailure(err)
	}

	id := uuid.New().String()
	filePath := i.store.PathFor(id, a.OriginalName)

	if err := i.store.Save(ctx, a, filePath); err != nil {
		i.logger.Error().Err(err).Str("filename", a.OriginalName).Msg("Failed to save image")
		return nil, fail(ErrStorage, MsgUploadFailed, err)
	}

	img := &domain.Image{
		ID:          id,
		Name:        displayName(name, a.OriginalName),
		ContentType: contentTypeOf(a, filePath),
		FileSize:    a.Size,
		UploadedAt:  time.Now().UTC(),
		FilePath:    filePath,
	}

	uow := i.uow.Begin()
	uow.Add(img)

	thumbnailPath, thumbErr := i.deriveThumbnail(ctx, img)
	img.ThumbnailPath = thumbnailPath

	if _, err := uow.Commit(ctx); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to commit uploaded image")
		i.discard(ctx, id, img.FilePath, img.ThumbnailPath)
		return nil, fail(ErrPersistence, MsgUploadFailed, err)
	}

	if thumbErr != nil {
		i.requestThumbnail(ctx, img, thumbErr)
	}

	i.logger.Info().
		Str("image_id", id).
		Str("filename", a.OriginalName).
		Int64("size", img.FileSize).
		Bool("thumbnail", img.HasThumbnail()).
		Msg("Image uploaded")

	v := base.View(img)
	return &v, nil
}

func (i *ImageUsecase) ListImages(ctx context.Context, base domain.BaseURL, page, pageSize int) (result *domain.ImagePage, err error) {
	defer observe("list", &err)

	page, pageSize = normalizePage(page, pageSize)
	uow := i.uow.Begin()

	total, err := uow.Count(ctx)
	if err != nil {
		return nil, fail(ErrPersistence, MsgListFailed, err)
	}

	images, err := uow.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fail(ErrPersistence, MsgListFailed, err)
	}

	items := make([]domain.ImageView, 0, len(images))
	for _, img := range images {
		items = append(items, base.View(img))
	}

	return &domain.ImagePage{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Items:    items,
	}, nil
}

func (i *ImageUsecase) GetImage(ctx context.Context, id string) (file *domain.StoredFile, err error) {
	defer observe("get", &err)

	img, err := i.lookup(ctx, i.uow.Begin(), id, MsgGetFailed)
	if err != nil {
		return nil, err
	}

	exists, err := i.store.Exists(ctx, img.FilePath)
	if err != nil {
		return nil, fail(ErrStorage, MsgGetFailed, err)
	}
	if !exists {
		i.logger.Warn().Str("image_id", id).Str("path", img.FilePath).Msg("Image file is missing")
		return nil, notFound(MsgImageFileNotFound)
	}

	return &domain.StoredFile{
		Path:        img.FilePath,
		ContentType: img.ContentType,
		FileName:    img.Name + path.Ext(img.FilePath),
	}, nil
}

func (i *ImageUsecase) GetThumbnail(ctx context.Context, id string) (file *domain.StoredFile, err error) {
	defer observe("get_thumbnail", &err)

	img, err := i.lookup(ctx, i.uow.Begin(), id, MsgGetFailed)
	if err != nil {
		return nil, err
	}

	if !img.HasThumbnail() {
		return nil, notFound(MsgThumbnailNotFound)
	}

	exists, err := i.store.Exists(ctx, img.ThumbnailPath)
	if err != nil {
		return nil, fail(ErrStorage, MsgGetFailed, err)
	}
	if !exists {
		i.logger.Warn().Str("image_id", id).Str("path", img.ThumbnailPath).Msg("Thumbnail file is missing")
		return nil, notFound(MsgThumbnailFileNotFound)
	}

	return &domain.StoredFile{
		Path:        img.ThumbnailPath,
		ContentType: repoImage.ContentTypeFor(img.ThumbnailPath),
		FileName:    path.Base(img.ThumbnailPath),
	}, nil
}

func (i *ImageUsecase) GetImageDetails(ctx context.Context, base domain.BaseURL, id string) (details *domain.ImageDetails, err error) {
	defer observe("details", &err)

	img, err := i.lookup(ctx, i.uow.Begin(), id, MsgGetFailed)
	if err != nil {
		return nil, err
	}

	exists, err := i.store.Exists(ctx, img.FilePath)
	if err != nil {
		return nil, fail(ErrStorage, MsgGetFailed, err)
	}

	thumbnailExists := false
	if img.HasThumbnail() {
		thumbnailExists, err = i.store.Exists(ctx, img.ThumbnailPath)
		if err != nil {
			return nil, fail(ErrStorage, MsgGetFailed, err)
		}
	}

	return &domain.ImageDetails{
		ImageView:     base.View(img),
		FilePath:      img.FilePath,
		ThumbnailPath: img.ThumbnailPath,
		Metadata: map[string]any{
			domain.MetaExists:          exists,
			domain.MetaHasThumbnail:    img.HasThumbnail(),
			domain.MetaThumbnailExists: thumbnailExists,
			domain.MetaExtension:       strings.ToLower(path.Ext(img.FilePath)),
		},
	}, nil
}

// UpdateImage renames the record and, when a is non-nil, replaces its
// artifact. Files the record no longer points at are removed after the
// commit succeeds; failing to remove them is only logged. If another
// writer committed first the update fails with ErrConflict.
func (i *ImageUsecase) UpdateImage(ctx context.Context, base domain.BaseURL, id, name string, a *domain.Artifact) (view *domain.ImageView, err error) {
	defer observe("update", &err)

	uow := i.uow.Begin()
	img, err := i.lookup(ctx, uow, id, MsgUpdateFailed)
	if err != nil {
		return nil, err
	}

	oldFilePath, oldThumbnailPath := img.FilePath, img.ThumbnailPath
	var thumbErr error

	if a != nil {
		if err := i.store.Validate(a); err != nil {
			return nil, validationFailure(err)
		}

		filePath := i.store.PathFor(id, a.OriginalName)
		if err := i.store.Save(ctx, a, filePath); err != nil {
			i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to save replacement image")
			return nil, fail(ErrStorage, MsgUpdateFailed, err)
		}

		img.FilePath = filePath
		img.ContentType = contentTypeOf(a, filePath)
		img.FileSize = a.Size
		img.ThumbnailPath, thumbErr = i.deriveThumbnail(ctx, img)
	}

	if name = strings.TrimSpace(name); name != "" {
		img.Name = name
	}

	now := time.Now().UTC()
	img.UpdatedAt = &now
	uow.Update(img)

	if _, err := uow.Commit(ctx); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to commit image update")
		if a != nil {
			i.discardUnreferenced(ctx, id, newPaths(img, oldFilePath, oldThumbnailPath)...)
		}
		return nil, commitFailure(err, MsgUpdateFailed)
	}

	if a != nil {
		i.discard(ctx, id, stalePaths(img, oldFilePath, oldThumbnailPath)...)
	}
	if thumbErr != nil {
		i.requestThumbnail(ctx, img, thumbErr)
	}

	i.logger.Info().Str("image_id", id).Bool("replaced", a != nil).Msg("Image updated")

	v := base.View(img)
	return &v, nil
}

func (i *ImageUsecase) DeleteImage(ctx context.Context, id string) (err error) {
	defer observe("delete", &err)

	uow := i.uow.Begin()
	img, err := i.lookup(ctx, uow, id, MsgDeleteFailed)
	if err != nil {
		return err
	}

	uow.Remove(img)

	if err := i.store.Delete(ctx, img.FilePath); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Str("path", img.FilePath).Msg("Failed to delete image file")
		return fail(ErrStorage, MsgDeleteFailed, err)
	}

	if img.HasThumbnail() {
		if err := i.store.Delete(ctx, img.ThumbnailPath); err != nil {
			i.logger.Error().Err(err).Str("image_id", id).Str("path", img.ThumbnailPath).Msg("Failed to delete thumbnail file")
			return fail(ErrStorage, MsgDeleteFailed, err)
		}
	}

	if _, err := uow.Commit(ctx); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to commit image deletion")
		return commitFailure(err, MsgDeleteFailed)
	}

	i.logger.Info().Str("image_id", id).Msg("Image deleted")
	return nil
}

// DeleteAllImages removes every record and its files. The first file that
// cannot be deleted aborts the whole operation without committing; files
// deleted before it stay deleted.
func (i *ImageUsecase) DeleteAllImages(ctx context.Context) (result *domain.PurgeResult, err error) {
	defer observe("delete_all", &err)

	uow := i.uow.Begin()
	images, err := uow.GetAll(ctx)
	if err != nil {
		return nil, fail(ErrPersistence, MsgDeleteAllFailed, err)
	}

	for _, img := range images {
		if err := i.store.Delete(ctx, img.FilePath); err != nil {
			i.logger.Error().Err(err).Str("image_id", img.ID).Str("path", img.FilePath).Msg("Failed to delete image file")
			return nil, fail(ErrStorage, MsgDeleteAllFailed, err)
		}

		if img.HasThumbnail() {
			if err := i.store.Delete(ctx, img.ThumbnailPath); err != nil {
				i.logger.Error().Err(err).Str("image_id", img.ID).Str("path", img.ThumbnailPath).Msg("Failed to delete thumbnail file")
				return nil, fail(ErrStorage, MsgDeleteAllFailed, err)
			}
		}

		uow.Remove(img)
	}

	if _, err := uow.Commit(ctx); err != nil {
		i.logger.Error().Err(err).Int("count", len(images)).Msg("Failed to commit bulk deletion")
		return nil, fail(ErrPersistence, MsgDeleteAllFailed, err)
	}

	i.logger.Info().Int("count", len(images)).Msg("All images deleted")

	return &domain.PurgeResult{
		Deleted: len(images),
		Message: fmt.Sprintf("%d images deleted successfully", len(images)),
	}, nil
}

// RegenerateThumbnail derives the thumbnail of an existing record again.
// Unlike upload, a processing failure here fails the operation. The commit
// only lands if the record is unchanged since it was read; otherwise the
// new thumbnail is dropped and ErrConflict is returned.
func (i *ImageUsecase) RegenerateThumbnail(ctx context.Context, id string) (img *domain.Image, err error) {
	defer observe("regenerate_thumbnail", &err)

	uow := i.uow.Begin()
	img, err = i.lookup(ctx, uow, id, MsgThumbnailFailed)
	if err != nil {
		return nil, err
	}

	exists, err := i.store.Exists(ctx, img.FilePath)
	if err != nil {
		return nil, fail(ErrStorage, MsgThumbnailFailed, err)
	}
	if !exists {
		return nil, notFound(MsgImageFileNotFound)
	}

	oldThumbnailPath := img.ThumbnailPath

	thumbnailPath, err := i.thumbnails.CreateThumbnail(ctx, img.FilePath, repoImage.ThumbnailPathFor(img.FilePath), i.size.Width, i.size.Height)
	if err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to regenerate thumbnail")
		return nil, fail(ErrProcessing, MsgThumbnailFailed, err)
	}

	now := time.Now().UTC()
	img.ThumbnailPath = thumbnailPath
	img.UpdatedAt = &now
	uow.Update(img)

	if _, err := uow.Commit(ctx); err != nil {
		i.logger.Warn().Err(err).Str("image_id", id).Msg("Failed to commit regenerated thumbnail")
		if thumbnailPath != oldThumbnailPath {
			i.discardUnreferenced(ctx, id, thumbnailPath)
		}
		return nil, commitFailure(err, MsgThumbnailFailed)
	}

	if oldThumbnailPath != "" && oldThumbnailPath != thumbnailPath {
		i.discard(ctx, id, oldThumbnailPath)
	}

	i.logger.Info().Str("image_id", id).Str("path", thumbnailPath).Msg("Thumbnail regenerated")
	return img, nil
}

func (i *ImageUsecase) lookup(ctx context.Context, uow repoImage.UnitOfWork, id, failure string) (*domain.Image, error) {
	img, err := uow.GetByID(ctx, id)
	if errors.Is(err, repoImage.ErrImageNotFound) {
		return nil, notFound(MsgImageNotFound)
	}
	if err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to load image")
		return nil, fail(ErrPersistence, failure, err)
	}
	return img, nil
}

// deriveThumbnail never fails the caller: on error it returns an empty path
// together with the cause.
func (i *ImageUsecase) deriveThumbnail(ctx context.Context, img *domain.Image) (string, error) {
	dest := repoImage.ThumbnailPathFor(img.FilePath)

	thumbnailPath, err := i.thumbnails.CreateThumbnail(ctx, img.FilePath, dest, i.size.Width, i.size.Height)
	if err != nil {
		metrics.ThumbnailDegraded()
		i.logger.Warn().Err(err).Str("image_id", img.ID).Msg("Thumbnail generation failed, continuing without thumbnail")
		return "", err
	}

	return thumbnailPath, nil
}

func (i *ImageUsecase) requestThumbnail(ctx context.Context, img *domain.Image, cause error) {
	if i.queue == nil {
		return
	}

	task := &domain.ThumbnailTask{
		ID:         uuid.New().String(),
		ImageID:    img.ID,
		SourcePath: img.FilePath,
		Reason:     cause.Error(),
		CreatedAt:  time.Now().UTC(),
	}

	if err := i.queue.Publish(ctx, task); err != nil {
		i.logger.Error().Err(err).Str("image_id", img.ID).Msg("Failed to queue thumbnail task")
	}
}

func (i *ImageUsecase) discard(ctx context.Context, id string, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := i.store.Delete(ctx, p); err != nil {
			i.logger.Warn().Err(err).Str("image_id", id).Str("path", p).Msg("Failed to clean up file")
		}
	}
}

// discardUnreferenced removes the paths the committed record of id does not
// point at. When the record cannot be read nothing is removed.
func (i *ImageUsecase) discardUnreferenced(ctx context.Context, id string, paths ...string) {
	current, err := i.uow.Begin().GetByID(ctx, id)
	switch {
	case errors.Is(err, repoImage.ErrImageNotFound):
	case err != nil:
		i.logger.Warn().Err(err).Str("image_id", id).Strs("paths", paths).Msg("Keeping files, record could not be read")
		return
	default:
		paths = slices.DeleteFunc(paths, func(p string) bool {
			return p == current.FilePath || p == current.ThumbnailPath
		})
	}

	i.discard(ctx, id, paths...)
}

// newPaths lists files written for img that did not exist before the update.
func newPaths(img *domain.Image, oldFilePath, oldThumbnailPath string) []string {
	var paths []string
	if img.FilePath != oldFilePath {
		paths = append(paths, img.FilePath)
	}
	if img.ThumbnailPath != "" && img.ThumbnailPath != oldThumbnailPath {
		paths = append(paths, img.ThumbnailPath)
	}
	return paths
}

// stalePaths lists files the committed record no longer references.
func stalePaths(img *domain.Image, oldFilePath, oldThumbnailPath string) []string {
	var paths []string
	if oldFilePath != img.FilePath {
		paths = append(paths, oldFilePath)
	}
	if oldThumbnailPath != "" && oldThumbnailPath != img.ThumbnailPath {
		paths = append(paths, oldThumbnailPath)
	}
	return paths
}

func validationFailure(err error) *Error {
	var verr *repoImage.ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: ErrValidation, Message: verr.Reason, Err: err}
	}
	return fail(ErrValidation, "Invalid image", err)
}

func displayName(name, originalName string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	base := filepath.Base(originalName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func contentTypeOf(a *domain.Artifact, filePath string) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	return repoImage.ContentTypeFor(filePath)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	if pageSize > domain.MaxPageSize {
		pageSize = domain.MaxPageSize
	}
	return page, pageSize
}

func observe(operation string, err *error) {
	metrics.ObserveOperation(operation, kindName(*err))
}
