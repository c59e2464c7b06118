package image

import (
	"bytes"
	"errors"
	goimage "image"
	"image/png"
	"strings"
	"testing"

	"image-server/internal/domain"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, goimage.NewGray(goimage.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewPolicyNormalizesExtensions(t *testing.T) {
	p := NewPolicy(0, []string{"PNG", " .Jpg ", ""})

	if p.MaxFileSize != domain.DefaultMaxUploadSize {
		t.Errorf("max size = %d", p.MaxFileSize)
	}
	if got := strings.Join(p.AllowedExtensions, ","); got != ".png,.jpg" {
		t.Errorf("extensions = %q", got)
	}
}

func TestValidate(t *testing.T) {
	content := tinyPNG(t)
	p := NewPolicy(1024, []string{".png", ".jpg"})

	tests := []struct {
		name     string
		artifact *domain.Artifact
		reason   string
	}{
		{
			name:     "valid",
			artifact: &domain.Artifact{OriginalName: "a.PNG", ContentType: "image/png", Size: int64(len(content)), Content: content},
		},
		{
			name:   "nil",
			reason: "No file uploaded",
		},
		{
			name:     "empty",
			artifact: &domain.Artifact{OriginalName: "a.png"},
			reason:   "No file uploaded",
		},
		{
			name:     "too large",
			artifact: &domain.Artifact{OriginalName: "a.png", Size: 2048, Content: content},
			reason:   "File is too large (max 0 MB)",
		},
		{
			name:     "extension",
			artifact: &domain.Artifact{OriginalName: "a.gif", Size: int64(len(content)), Content: content},
			reason:   "Unsupported file format. Allowed: png, jpg",
		},
		{
			name:     "declared type",
			artifact: &domain.Artifact{OriginalName: "a.png", ContentType: "text/plain", Size: int64(len(content)), Content: content},
			reason:   "File must be an image",
		},
		{
			name:     "sniffed type",
			artifact: &domain.Artifact{OriginalName: "a.png", Size: 5, Content: []byte("hello")},
			reason:   "File must be an image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.artifact)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", verr.Reason, tt.reason)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("error does not wrap ErrValidation")
			}
		})
	}
}

func TestPaths(t *testing.T) {
	p := NewPolicy(0, nil)

	if got := p.PathFor("id", "Photo.JPEG"); got != "images/id.jpeg" {
		t.Errorf("PathFor = %q", got)
	}
	if got := ThumbnailPathFor("images/id.jpeg"); got != "thumbnails/thumb_id.jpeg" {
		t.Errorf("ThumbnailPathFor = %q", got)
	}
	if got := ContentTypeFor("thumbnails/x.TIF"); got != "image/tiff" {
		t.Errorf("ContentTypeFor = %q", got)
	}
	if got := ContentTypeFor("x.txt"); got != "application/octet-stream" {
		t.Errorf("ContentTypeFor = %q", got)
	}
}
