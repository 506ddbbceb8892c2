package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
	"github.com/visualmatch/backend/internal/usecase"
)

// DefaultMaxUploadBytes is the largest accepted image upload (10MB)
const DefaultMaxUploadBytes = 10 * 1024 * 1024

const jsonEnvelopeBytes = 1024

// MatcherUsecase is the behaviour the handlers need from the matcher service
type MatcherUsecase interface {
	Search(ctx context.Context, request *domain.SearchRequest) (*domain.RankedResultSet, error)
	Results(ctx context.Context, id string, view domain.ResultView) (*domain.ResultPage, error)
	Discard(ctx context.Context, id string) error
	Configured() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher        MatcherUsecase
	maxUploadBytes int64
}

// NewHandler creates a new HTTP handler. A nil matcher makes every search
// endpoint answer 503.
func NewHandler(matcher MatcherUsecase, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{matcher: matcher, maxUploadBytes: maxUploadBytes}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "visualmatch-backend",
		"version": "1.0.0",
	})
}

// Status reports whether the matcher has all the credentials it needs
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"configured": h.configured(),
	})
}

// CreateSearch accepts an image as a multipart "image" file or as JSON
// {"imageData": ...} / {"imageUrl": ...}, runs the matcher pipeline and
// answers with the first unfiltered page
func (h *Handler) CreateSearch(c *gin.Context) {
	if !h.configured() {
		writeError(c, domain.ErrNotConfigured)
		return
	}

	request, err := h.bindSearchRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	set, err := h.matcher.Search(c.Request.Context(), request)
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := usecase.PageOf(set, usecase.DefaultResultView())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, page)
}

// GetResults returns a filtered page of a stored result set.
// Query: min, max (similarity range), tag, offset, limit.
func (h *Handler) GetResults(c *gin.Context) {
	if h.matcher == nil {
		writeError(c, domain.ErrNotConfigured)
		return
	}

	view, err := parseResultView(c)
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := h.matcher.Results(c.Request.Context(), c.Param("id"), view)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// DeleteSearch drops a stored result set
func (h *Handler) DeleteSearch(c *gin.Context) {
	if h.matcher == nil {
		writeError(c, domain.ErrNotConfigured)
		return
	}

	if err := h.matcher.Discard(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) configured() bool {
	return h.matcher != nil && h.matcher.Configured()
}

func (h *Handler) bindSearchRequest(c *gin.Context) (*domain.SearchRequest, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		upload, err := h.readUpload(c)
		if err != nil {
			return nil, err
		}
		return &domain.SearchRequest{Upload: upload}, nil
	}

	// Inline images count against the same limit as uploads
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxJSONBytes())

	var request domain.SearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidImage, h.maxUploadBytes)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return &request, nil
}

// maxJSONBytes is the base64 size of the largest image plus room for the
// surrounding JSON and data URL header
func (h *Handler) maxJSONBytes() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(h.maxUploadBytes))) + jsonEnvelopeBytes
}

// readUpload reads the "image" form file, enforcing the size limit and an
// image media type
func (h *Handler) readUpload(c *gin.Context) (*domain.Image, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: missing image file: %v", domain.ErrInvalidRequest, err)
	}
	if fileHeader.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidImage, h.maxUploadBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidImage, h.maxUploadBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidImage)
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported media type %q", domain.ErrInvalidImage, mimeType)
	}

	return &domain.Image{Data: data, MIMEType: mimeType}, nil
}

func parseResultView(c *gin.Context) (domain.ResultView, error) {
	view := usecase.DefaultResultView()
	view.Tag = strings.TrimSpace(c.Query("tag"))

	fields := []struct {
		name   string
		target *int
	}{
		{"min", &view.Range.Min},
		{"max", &view.Range.Max},
		{"offset", &view.Offset},
		{"limit", &view.Limit},
	}

	for _, f := range fields {
		raw, ok := c.GetQuery(f.name)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return view, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidRequest, f.name)
		}
		*f.target = n
	}

	return view, nil
}

// writeError maps domain errors to HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrResultSetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrImageFetch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAIAPIFailure),
		errors.Is(err, domain.ErrEmptyReply),
		errors.Is(err, domain.ErrSearchAPIFailure):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Str("path", c.FullPath()).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
