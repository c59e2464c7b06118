package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"image-server/internal/domain"
	repoImage "image-server/internal/repository/image"
	"image-server/internal/repository/image/fs/local"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

func testLogger() *zlog.Zerolog {
	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	return &zlog.Logger
}

func newStore(t *testing.T) *local.FileRepository {
	t.Helper()

	store, err := local.NewFileRepository(t.TempDir(), repoImage.NewPolicy(0, nil), testLogger())
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	return store
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func put(t *testing.T, store *local.FileRepository, path string, encode func(*bytes.Buffer) error) {
	t.Helper()

	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.Put(context.Background(), path, &buf, int64(buf.Len()), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func decode(t *testing.T, store *local.FileRepository, path string) (image.Image, string) {
	t.Helper()

	f, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img, format
}

func TestCreateThumbnailKeepsAspectRatio(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/a.png", func(b *bytes.Buffer) error { return png.Encode(b, gradient(800, 400)) })

	g, err := NewThumbnailGenerator(store, Options{}, testLogger())
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}

	got, err := g.CreateThumbnail(context.Background(), "images/a.png", "thumbnails/thumb_a.png", 200, 200)
	if err != nil {
		t.Fatalf("CreateThumbnail: %v", err)
	}
	if got != "thumbnails/thumb_a.png" {
		t.Errorf("path = %q", got)
	}

	thumb, format := decode(t, store, got)
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if b := thumb.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("size = %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestCreateThumbnailDoesNotUpscale(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/small.jpg", func(b *bytes.Buffer) error {
		return jpeg.Encode(b, gradient(50, 30), nil)
	})

	g, err := NewThumbnailGenerator(store, Options{}, testLogger())
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}

	got, err := g.CreateThumbnail(context.Background(), "images/small.jpg", "thumbnails/thumb_small.jpg", 200, 200)
	if err != nil {
		t.Fatalf("CreateThumbnail: %v", err)
	}

	thumb, format := decode(t, store, got)
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if b := thumb.Bounds(); b.Dx() != 50 || b.Dy() != 30 {
		t.Errorf("size = %dx%d, want 50x30", b.Dx(), b.Dy())
	}
}

func TestCreateThumbnailCropToFit(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/wide.png", func(b *bytes.Buffer) error { return png.Encode(b, gradient(600, 200)) })

	g, err := NewThumbnailGenerator(store, Options{CropToFit: true, WatermarkText: "sample"}, testLogger())
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}

	got, err := g.CreateThumbnail(context.Background(), "images/wide.png", "thumbnails/thumb_wide.png", 120, 120)
	if err != nil {
		t.Fatalf("CreateThumbnail: %v", err)
	}

	thumb, _ := decode(t, store, got)
	if b := thumb.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Errorf("size = %dx%d, want 120x120", b.Dx(), b.Dy())
	}
}

func TestCreateThumbnailRewritesExtension(t *testing.T) {
	store := newStore(t)
	// a JPEG stored under a .webp name is re-encoded as JPEG
	put(t, store, "images/pic.webp", func(b *bytes.Buffer) error {
		return jpeg.Encode(b, gradient(40, 40), nil)
	})

	g, err := NewThumbnailGenerator(store, Options{}, testLogger())
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}

	got, err := g.CreateThumbnail(context.Background(), "images/pic.webp", "thumbnails/thumb_pic.webp", 20, 20)
	if err != nil {
		t.Fatalf("CreateThumbnail: %v", err)
	}
	if got != "thumbnails/thumb_pic.jpg" {
		t.Errorf("path = %q, want thumbnails/thumb_pic.jpg", got)
	}
}

func TestCreateThumbnailFailures(t *testing.T) {
	store := newStore(t)
	put(t, store, "images/garbage.png", func(b *bytes.Buffer) error {
		_, err := b.WriteString("definitely not an image")
		return err
	})

	g, err := NewThumbnailGenerator(store, Options{}, testLogger())
	if err != nil {
		t.Fatalf("NewThumbnailGenerator: %v", err)
	}

	tests := []struct {
		name   string
		source string
		width  int
		cause  error
	}{
		{name: "undecodable", source: "images/garbage.png", width: 100, cause: ErrUnsupportedImg},
		{name: "missing source", source: "images/absent.png", width: 100, cause: repoImage.ErrFileNotFound},
		{name: "invalid size", source: "images/garbage.png", width: 0, cause: ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.CreateThumbnail(context.Background(), tt.source, "thumbnails/out.png", tt.width, 100)
			if !errors.Is(err, ErrProcessing) {
				t.Fatalf("err = %v, want ErrProcessing", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("err = %v, want it to wrap %v", err, tt.cause)
			}
		})
	}
}

func TestWithExt(t *testing.T) {
	tests := []struct {
		in   string
		exts []string
		want string
	}{
		{"thumbnails/a.png", []string{".png"}, "thumbnails/a.png"},
		{"thumbnails/a.JPEG", []string{".jpg", ".jpeg"}, "thumbnails/a.JPEG"},
		{"thumbnails/a.bmp", []string{".jpg", ".jpeg"}, "thumbnails/a.jpg"},
		{"thumbnails/a.tiff", []string{".gif"}, "thumbnails/a.gif"},
	}

	for _, tt := range tests {
		if got := withExt(tt.in, tt.exts...); got != tt.want {
			t.Errorf("withExt(%q, %s) = %q, want %q", tt.in, strings.Join(tt.exts, ","), got, tt.want)
		}
	}
}

func TestNewThumbnailGeneratorWatermarkPositions(t *testing.T) {
	positions := []string{
		domain.WatermarkTopLeft,
		domain.WatermarkTopRight,
		domain.WatermarkBottomLeft,
		domain.WatermarkBottomRight,
		domain.WatermarkCenter,
	}

	for _, pos := range positions {
		t.Run(pos, func(t *testing.T) {
			store := newStore(t)
			put(t, store, "images/p.png", func(b *bytes.Buffer) error { return png.Encode(b, gradient(300, 300)) })

			g, err := NewThumbnailGenerator(store, Options{WatermarkText: "(c)", WatermarkPosition: pos}, testLogger())
			if err != nil {
				t.Fatalf("NewThumbnailGenerator: %v", err)
			}
			if _, err := g.CreateThumbnail(context.Background(), "images/p.png", "thumbnails/thumb_p.png", 100, 100); err != nil {
				t.Fatalf("CreateThumbnail: %v", err)
			}
		})
	}
}
