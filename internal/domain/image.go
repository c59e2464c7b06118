package domain

import "time"

// Image is the committed metadata record of one stored artifact.
type Image struct {
	ID            string
	Name          string
	ContentType   string
	FileSize      int64
	UploadedAt    time.Time
	UpdatedAt     *time.Time
	FilePath      string
	ThumbnailPath string
	// Version is bumped by every committed update; a staged update only
	// applies if the row still carries the version it was read with.
	Version int64
}

func (i *Image) HasThumbnail() bool {
	return i.ThumbnailPath != ""
}

// Artifact is an uploaded file held in memory so that writes can be repeated.
type Artifact struct {
	OriginalName string
	ContentType  string
	Size         int64
	Content      []byte
}

type ImageView struct {
	ID           string
	Name         string
	ContentType  string
	FileSize     int64
	UploadedAt   time.Time
	UpdatedAt    *time.Time
	URL          string
	ThumbnailURL string
}

type ImageDetails struct {
	ImageView
	FilePath      string
	ThumbnailPath string
	Metadata      map[string]any
}

type ImagePage struct {
	Page     int
	PageSize int
	Total    int
	Items    []ImageView
}

// StoredFile points at an artifact the caller can stream.
type StoredFile struct {
	Path        string
	ContentType string
	FileName    string
}

type PurgeResult struct {
	Deleted int
	Message string
}

const (
	MetaExists          = "exists"
	MetaHasThumbnail    = "hasThumbnail"
	MetaThumbnailExists = "thumbnailExists"
	MetaExtension       = "extension"
)

const (
	PathPrefixOriginal  = "images/"
	PathPrefixThumbnail = "thumbnails/"
	ThumbnailFilePrefix = "thumb_"
)

const (
	DefaultMaxUploadSize   = 10 << 20
	DefaultThumbnailWidth  = 200
	DefaultThumbnailHeight = 200
	DefaultJPEGQuality     = 85
	DefaultPageSize        = 20
	MaxPageSize            = 100
	DefaultWatermarkAlpha  = 0.5
)

var DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff"}
