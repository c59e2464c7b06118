package image

import "errors"

var (
	ErrInvalidForm   = errors.New("invalid request format")
	ErrInvalidPaging = errors.New("invalid pagination parameters")
	ErrFileTooLarge  = errors.New("file too large")
)

const (
	msgInvalidImageID = "Invalid image ID"
	msgInvalidForm    = "Invalid request format"
	msgInvalidPaging  = "Invalid pagination parameters"
)
