package domain

import (
	"net/url"
	"strings"
)

// BaseURL is the scheme and host of the request being served. It is passed
// into every operation that builds locators and never stored.
type BaseURL struct {
	Scheme string
	Host   string
}

func (b BaseURL) ImageURL(id string) string {
	return b.build("api", "images", id)
}

func (b BaseURL) ThumbnailURL(id string) string {
	return b.build("api", "images", id, "thumbnail")
}

func (b BaseURL) build(segments ...string) string {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "http"
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	u := url.URL{
		Scheme:  scheme,
		Host:    b.Host,
		Path:    "/" + strings.Join(segments, "/"),
		RawPath: "/" + strings.Join(escaped, "/"),
	}
	return u.String()
}

// View builds the externally addressable representation of img.
func (b BaseURL) View(img *Image) ImageView {
	view := ImageView{
		ID:          img.ID,
		Name:        img.Name,
		ContentType: img.ContentType,
		FileSize:    img.FileSize,
		UploadedAt:  img.UploadedAt,
		UpdatedAt:   img.UpdatedAt,
		URL:         b.ImageURL(img.ID),
	}
	if img.HasThumbnail() {
		view.ThumbnailURL = b.ThumbnailURL(img.ID)
	}
	return view
}
