package processor

import "errors"

var (
	ErrProcessing     = errors.New("thumbnail processing failed")
	ErrInvalidSize    = errors.New("thumbnail size must be positive")
	ErrUnsupportedImg = errors.New("unsupported image format")
)
