package image

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"image-server/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

// Policy decides which uploads are acceptable and where artifacts live.
// Both artifact store backends embed it.
type Policy struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

func NewPolicy(maxFileSize int64, allowedExtensions []string) *Policy {
	if maxFileSize <= 0 {
		maxFileSize = domain.DefaultMaxUploadSize
	}
	if len(allowedExtensions) == 0 {
		allowedExtensions = domain.DefaultAllowedExtensions
	}

	normalized := make([]string, 0, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}

	return &Policy{
		MaxFileSize:       maxFileSize,
		AllowedExtensions: normalized,
	}
}

// ValidationError carries a reason that is safe to show to the uploader.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// Validate inspects a without touching storage. Failures are *ValidationError.
func (p *Policy) Validate(a *domain.Artifact) error {
	if a == nil || a.Size == 0 || len(a.Content) == 0 {
		return invalid("No file uploaded")
	}

	if a.Size > p.MaxFileSize || int64(len(a.Content)) > p.MaxFileSize {
		return invalid(fmt.Sprintf("File is too large (max %d MB)", p.MaxFileSize/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(a.OriginalName))
	if !p.isAllowedExtension(ext) {
		return invalid("Unsupported file format. Allowed: " + p.allowedList())
	}

	if a.ContentType != "" && !strings.HasPrefix(a.ContentType, "image/") {
		return invalid("File must be an image")
	}

	detected := mimetype.Detect(a.Content)
	if !strings.HasPrefix(detected.String(), "image/") {
		return invalid("File must be an image")
	}

	return nil
}

// PathFor returns the store-relative location of the original artifact.
func (p *Policy) PathFor(id, originalName string) string {
	return path.Join(domain.PathPrefixOriginal, id+strings.ToLower(filepath.Ext(originalName)))
}

// ThumbnailPathFor returns where the thumbnail of the artifact at filePath goes.
func ThumbnailPathFor(filePath string) string {
	return path.Join(domain.PathPrefixThumbnail, domain.ThumbnailFilePrefix+path.Base(filePath))
}

// ContentTypeFor guesses a MIME type from the extension of p.
func ContentTypeFor(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func (p *Policy) isAllowedExtension(ext string) bool {
	for _, allowed := range p.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (p *Policy) allowedList() string {
	names := make([]string, len(p.AllowedExtensions))
	for i, ext := range p.AllowedExtensions {
		names[i] = strings.TrimPrefix(ext, ".")
	}
	return strings.Join(names, ", ")
}
