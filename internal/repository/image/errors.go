package image

import "errors"

var (
	ErrImageNotFound  = errors.New("image not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrStorage        = errors.New("storage error")
	ErrValidation     = errors.New("storage validation failed")
	ErrDuplicateKey   = errors.New("duplicate key violation")
	ErrConflict       = errors.New("image modified concurrently")
	ErrCommitFailed   = errors.New("commit failed")
	ErrUnitOfWorkUsed = errors.New("unit of work already committed")
)
