package image

import (
	"errors"

	repoImage "image-server/internal/repository/image"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrStorage     = errors.New("storage error")
	ErrProcessing  = errors.New("processing error")
	ErrPersistence = errors.New("persistence error")
)

const (
	MsgImageNotFound         = "Image not found"
	MsgImageFileNotFound     = "Image file not found"
	MsgThumbnailNotFound     = "Thumbnail not found"
	MsgThumbnailFileNotFound = "Thumbnail file not found"
	MsgImageConflict         = "Image was modified by another request"

	MsgUploadFailed    = "Error uploading image"
	MsgListFailed      = "Error retrieving images"
	MsgGetFailed       = "Error retrieving image"
	MsgUpdateFailed    = "Error updating image"
	MsgDeleteFailed    = "Error deleting image"
	MsgDeleteAllFailed = "Failed to delete all images"
	MsgThumbnailFailed = "Error generating thumbnail"
)

// Error is the outcome of a failed coordinator operation. Kind is one of the
// Err* sentinels above and Message is fit for the caller to display.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(kind error, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message + ": " + err.Error(),
		Err:     err,
	}
}

func notFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// commitFailure maps a failed unit of work commit onto an outcome kind.
func commitFailure(err error, message string) *Error {
	switch {
	case errors.Is(err, repoImage.ErrImageNotFound):
		return notFound(MsgImageNotFound)
	case errors.Is(err, repoImage.ErrConflict):
		return &Error{Kind: ErrConflict, Message: MsgImageConflict, Err: err}
	default:
		return fail(ErrPersistence, message, err)
	}
}

func kindName(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrProcessing):
		return "processing"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
