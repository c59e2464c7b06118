package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"image-server/internal/domain"
	"image-server/internal/http-server/handler/image/dto"
	repoImage "image-server/internal/repository/image"
	image_uc "image-server/internal/usecase/image"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory = 32 << 20
	// room for multipart boundaries and the name field on top of the file
	formOverhead = 1 << 20
)

type ImageHandler struct {
	usecase       imageUsecase
	files         artifactReader
	validate      *validator.Validate
	maxUploadSize int64
	logger        *zlog.Zerolog
}

func NewImageHandler(usecase imageUsecase, files artifactReader, maxUploadSize int64, logger *zlog.Zerolog) *ImageHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.DefaultMaxUploadSize
	}

	return &ImageHandler{
		usecase:       usecase,
		files:         files,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	artifact, err := h.readForm(w, r)
	if err != nil {
		h.respondFormError(w, err)
		return
	}

	req := dto.UploadRequest{Name: r.FormValue("name")}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Name is too long", nil)
		return
	}

	view, err := h.usecase.UploadImage(ctx, baseURL(r), req.Name, artifact)
	if err != nil {
		h.handleError(w, err, "upload", "")
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.NewImageResponse(*view))
}

func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseListRequest(r)
	if err == nil {
		err = h.validate.Struct(req)
	}
	if err != nil {
		h.respondError(w, http.StatusBadRequest, msgInvalidPaging, nil)
		return
	}

	page, err := h.usecase.ListImages(ctx, baseURL(r), req.Page, req.PageSize)
	if err != nil {
		h.handleError(w, err, "list", "")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewImageListResponse(page))
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	file, err := h.usecase.GetImage(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get", id)
		return
	}

	h.stream(w, r, id, file, image_uc.MsgImageFileNotFound)
}

func (h *ImageHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	file, err := h.usecase.GetThumbnail(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get_thumbnail", id)
		return
	}

	h.stream(w, r, id, file, image_uc.MsgThumbnailFileNotFound)
}

func (h *ImageHandler) GetImageDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	details, err := h.usecase.GetImageDetails(r.Context(), baseURL(r), id)
	if err != nil {
		h.handleError(w, err, "details", id)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewImageDetailsResponse(details))
}

func (h *ImageHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	artifact, err := h.readForm(w, r)
	if err != nil {
		h.respondFormError(w, err)
		return
	}

	req := dto.UpdateRequest{ID: id, Name: r.FormValue("name")}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Name is too long", nil)
		return
	}

	view, err := h.usecase.UpdateImage(r.Context(), baseURL(r), req.ID, req.Name, artifact)
	if err != nil {
		h.handleError(w, err, "update", id)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewImageResponse(*view))
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	if err := h.usecase.DeleteImage(r.Context(), id); err != nil {
		h.handleError(w, err, "delete", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ImageHandler) DeleteAllImages(w http.ResponseWriter, r *http.Request) {
	result, err := h.usecase.DeleteAllImages(r.Context())
	if err != nil {
		h.handleError(w, err, "delete_all", "")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.DeleteAllResponse{
		Message: result.Message,
		Deleted: result.Deleted,
	})
}

// imageID reads and validates the {id} route parameter. On failure the
// response has already been written.
func (h *ImageHandler) imageID(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := dto.ImageIDRequest{ID: chi.URLParam(r, "id")}

	if err := h.validate.Struct(req); err != nil || req.ID == uuid.Nil.String() {
		h.respondError(w, http.StatusBadRequest, msgInvalidImageID, nil)
		return "", false
	}

	return strings.ToLower(req.ID), true
}

// readForm parses a multipart body and returns the uploaded file, or nil
// when the request carries none.
func (h *ImageHandler) readForm(w http.ResponseWriter, r *http.Request) (*domain.Artifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}

	return &domain.Artifact{
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         int64(len(content)),
		Content:      content,
	}, nil
}

func (h *ImageHandler) stream(w http.ResponseWriter, r *http.Request, id string, file *domain.StoredFile, missing string) {
	reader, err := h.files.Open(r.Context(), file.Path)
	if err != nil {
		if errors.Is(err, repoImage.ErrFileNotFound) {
			h.respondError(w, http.StatusNotFound, missing, nil)
			return
		}
		h.logger.Error().Err(err).Str("image_id", id).Str("path", file.Path).Msg("Failed to open file")
		h.respondError(w, http.StatusInternalServerError, "Failed to read file", err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.FileName))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error().
			Err(err).
			Str("image_id", id).
			Str("path", file.Path).
			Msg("Failed to stream file")
	}
}

func (h *ImageHandler) respondFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrFileTooLarge) {
		h.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("File is too large (max %d MB)", h.maxUploadSize/(1024*1024)), nil)
		return
	}

	h.logger.Warn().Err(err).Msg("Failed to parse multipart form")
	h.respondError(w, http.StatusBadRequest, msgInvalidForm, nil)
}

func (h *ImageHandler) handleError(w http.ResponseWriter, err error, operation, imageID string) {
	switch {
	case errors.Is(err, image_uc.ErrValidation):
		h.logger.Warn().Str("operation", operation).Str("reason", err.Error()).Msg("Rejected request")
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, image_uc.ErrNotFound):
		h.logger.Info().Str("operation", operation).Str("image_id", imageID).Msg(err.Error())
		h.respondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, image_uc.ErrConflict):
		h.logger.Warn().Str("operation", operation).Str("image_id", imageID).Msg(err.Error())
		h.respondError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Str("operation", operation).Str("image_id", imageID).Msg("Operation failed")
		h.respondError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func (h *ImageHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ImageHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}

func parseListRequest(r *http.Request) (dto.ListRequest, error) {
	var req dto.ListRequest
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: page: %w", ErrInvalidPaging, err)
		}
		req.Page = page
	}

	if v := q.Get("pageSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: pageSize: %w", ErrInvalidPaging, err)
		}
		req.PageSize = size
	}

	return req, nil
}

// baseURL derives the scheme and host the client used, honouring
// reverse proxy headers.
func baseURL(r *http.Request) domain.BaseURL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}

	return domain.BaseURL{Scheme: scheme, Host: host}
}

func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
