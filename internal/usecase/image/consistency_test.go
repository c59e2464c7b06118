package image

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"

	"image-server/internal/domain"
	repoImage "image-server/internal/repository/image"
	"image-server/internal/repository/image/db/sqlite"
	"image-server/internal/repository/image/fs/local"
	"image-server/internal/usecase/processor"
)

// hookedThumbnails runs after once, right after the next thumbnail is written.
type hookedThumbnails struct {
	thumbnailGenerator
	after func()
}

func (h *hookedThumbnails) CreateThumbnail(ctx context.Context, src, dst string, width, height int) (string, error) {
	p, err := h.thumbnailGenerator.CreateThumbnail(ctx, src, dst, width, height)
	if hook := h.after; hook != nil && err == nil {
		h.after = nil
		hook()
	}
	return p, err
}

func jpegArtifact(t *testing.T, name string) *domain.Artifact {
	t.Helper()

	img := goimage.NewRGBA(goimage.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y * 8), B: uint8(x * 6), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return &domain.Artifact{
		OriginalName: name,
		ContentType:  "image/jpeg",
		Size:         int64(buf.Len()),
		Content:      buf.Bytes(),
	}
}

func newStackedUsecase(t *testing.T) (*ImageUsecase, *local.FileRepository, *hookedThumbnails) {
	t.Helper()

	logger := testLogger()

	store, err := local.NewFileRepository(filepath.Join(t.TempDir(), "uploads"), repoImage.NewPolicy(0, nil), logger)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}

	repo, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	generator, err := processor.NewThumbnailGenerator(store, processor.Options{}, logger)
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}
	thumbnails := &hookedThumbnails{thumbnailGenerator: generator}

	return NewImageUsecase(store, thumbnails, repo.NewUnitOfWorkFactory(), nil, ThumbnailSize{}, logger), store, thumbnails
}

func TestRegenerateThumbnailKeepsConcurrentReplacement(t *testing.T) {
	ctx := context.Background()
	uc, store, thumbnails := newStackedUsecase(t)

	view, err := uc.UploadImage(ctx, base, "", pngArtifact(t, "a.png"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	id := view.ID

	thumbnails.after = func() {
		if _, err := uc.UpdateImage(ctx, base, id, "", jpegArtifact(t, "b.jpg")); err != nil {
			t.Errorf("concurrent replace: %v", err)
		}
	}

	if _, err := uc.RegenerateThumbnail(ctx, id); !errors.Is(err, ErrConflict) {
		t.Fatalf("RegenerateThumbnail: err = %v, want conflict", err)
	}

	details, err := uc.GetImageDetails(ctx, base, id)
	if err != nil {
		t.Fatalf("GetImageDetails: %v", err)
	}
	if details.FilePath != "images/"+id+".jpg" || details.ContentType != "image/jpeg" {
		t.Errorf("record = %s %s, want the replacement", details.FilePath, details.ContentType)
	}
	if exists, err := store.Exists(ctx, details.FilePath); err != nil || !exists {
		t.Errorf("committed file exists = %v, %v", exists, err)
	}

	if _, err := uc.GetImage(ctx, id); err != nil {
		t.Errorf("GetImage: %v", err)
	}
	if _, err := uc.GetThumbnail(ctx, id); err != nil {
		t.Errorf("GetThumbnail: %v", err)
	}

	if exists, _ := store.Exists(ctx, "thumbnails/thumb_"+id+".png"); exists {
		t.Error("thumbnail of the replaced artifact was left behind")
	}
}

func TestRegenerateThumbnailCommitsWhenUndisturbed(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newStackedUsecase(t)

	view, err := uc.UploadImage(ctx, base, "", pngArtifact(t, "a.png"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	img, err := uc.RegenerateThumbnail(ctx, view.ID)
	if err != nil {
		t.Fatalf("RegenerateThumbnail: %v", err)
	}
	if exists, err := store.Exists(ctx, img.ThumbnailPath); err != nil || !exists {
		t.Errorf("thumbnail exists = %v, %v", exists, err)
	}
	if img.Version != 1 {
		t.Errorf("version = %d, want 1", img.Version)
	}
}
