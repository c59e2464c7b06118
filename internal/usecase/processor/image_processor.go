package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"image-server/internal/domain"
	"image-server/internal/usecase/processor/operations"

	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Options struct {
	CropToFit         bool
	WatermarkText     string
	WatermarkSize     float64
	WatermarkPosition string
}

type ThumbnailGenerator struct {
	thumbnailer *operations.Thumbnailer
	watermarker *operations.Watermarker
	store       artifactStore
	logger      *zlog.Zerolog
}

func NewThumbnailGenerator(store artifactStore, opts Options, logger *zlog.Zerolog) (*ThumbnailGenerator, error) {
	watermarker, err := operations.NewWatermarker(opts.WatermarkText, opts.WatermarkSize, opts.WatermarkPosition)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermarker: %w", err)
	}

	return &ThumbnailGenerator{
		thumbnailer: operations.NewThumbnailer(opts.CropToFit),
		watermarker: watermarker,
		store:       store,
		logger:      logger,
	}, nil
}

// CreateThumbnail reads sourcePath, writes a scaled copy and returns where
// it was written. The returned path equals destPath unless the output format
// required a different extension. Every error wraps ErrProcessing.
func (g *ThumbnailGenerator) CreateThumbnail(ctx context.Context, sourcePath, destPath string, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: %w", ErrProcessing, ErrInvalidSize)
	}

	src, err := g.store.Open(ctx, sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrProcessing, sourcePath, err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %w: %w", ErrProcessing, sourcePath, ErrUnsupportedImg, err)
	}

	thumbnail := g.thumbnailer.Fit(img, width, height)

	if g.watermarker != nil {
		thumbnail, err = g.watermarker.Stamp(thumbnail)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrProcessing, err)
		}
	}

	buf := new(bytes.Buffer)
	var contentType string

	switch format {
	case "png":
		err = png.Encode(buf, thumbnail)
		contentType = "image/png"
		destPath = withExt(destPath, ".png")
	case "gif":
		err = gif.Encode(buf, thumbnail, nil)
		contentType = "image/gif"
		destPath = withExt(destPath, ".gif")
	default:
		err = jpeg.Encode(buf, thumbnail, &jpeg.Options{Quality: domain.DefaultJPEGQuality})
		contentType = "image/jpeg"
		destPath = withExt(destPath, ".jpg", ".jpeg")
	}
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", ErrProcessing, format, err)
	}

	size := int64(buf.Len())
	if err := g.store.Put(ctx, destPath, buf, size, contentType); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrProcessing, destPath, err)
	}

	g.logger.Debug().
		Str("source", sourcePath).
		Str("path", destPath).
		Str("format", format).
		Int("width", thumbnail.Bounds().Dx()).
		Int("height", thumbnail.Bounds().Dy()).
		Int64("size", size).
		Msg("Thumbnail created")

	return destPath, nil
}

// withExt keeps p when it already carries one of exts and otherwise swaps
// its extension for the first one.
func withExt(p string, exts ...string) string {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == e {
			return p
		}
	}
	return strings.TrimSuffix(p, path.Ext(p)) + exts[0]
}
