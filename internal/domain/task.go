package domain

import "time"

// ThumbnailTask asks the worker to derive a thumbnail that could not be
// produced inline.
type ThumbnailTask struct {
	ID         string    `json:"id"`
	ImageID    string    `json:"image_id"`
	SourcePath string    `json:"source_path"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	KafkaTopicThumbnails = "image-thumbnails"
	KafkaGroupID         = "image-server-thumbnailer"
)

const (
	WatermarkTopLeft     = "top-left"
	WatermarkTopRight    = "top-right"
	WatermarkBottomLeft  = "bottom-left"
	WatermarkBottomRight = "bottom-right"
	WatermarkCenter      = "center"
)
