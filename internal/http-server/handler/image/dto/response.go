package dto

import (
	"time"

	"image-server/internal/domain"
)

type ImageResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ContentType  string     `json:"contentType"`
	FileSize     int64      `json:"fileSize"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
}

type ImageListResponse struct {
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
	Items      []ImageResponse `json:"items"`
}

type ImageDetailsResponse struct {
	ImageResponse
	FilePath      string         `json:"filePath"`
	ThumbnailPath string         `json:"thumbnailPath,omitempty"`
	Metadata      map[string]any `json:"metadata"`
}

type DeleteAllResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewImageResponse(v domain.ImageView) ImageResponse {
	return ImageResponse{
		ID:           v.ID,
		Name:         v.Name,
		ContentType:  v.ContentType,
		FileSize:     v.FileSize,
		UploadedAt:   v.UploadedAt,
		UpdatedAt:    v.UpdatedAt,
		URL:          v.URL,
		ThumbnailURL: v.ThumbnailURL,
	}
}

func NewImageListResponse(p *domain.ImagePage) ImageListResponse {
	items := make([]ImageResponse, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, NewImageResponse(v))
	}

	totalPages := 0
	if p.PageSize > 0 {
		totalPages = (p.Total + p.PageSize - 1) / p.PageSize
	}

	return ImageListResponse{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: totalPages,
		Items:      items,
	}
}

func NewImageDetailsResponse(d *domain.ImageDetails) ImageDetailsResponse {
	return ImageDetailsResponse{
		ImageResponse: NewImageResponse(d.ImageView),
		FilePath:      d.FilePath,
		ThumbnailPath: d.ThumbnailPath,
		Metadata:      d.Metadata,
	}
}
