package imagefetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	// DefaultMaxImageSize matches the upload limit (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// Fetcher downloads images for analysis and thumbnail comparison
type Fetcher struct {
	httpClient *resty.Client
	maxSize    int64
}

// NewFetcher creates a fetcher with the given timeout and size limit.
// Zero values select the defaults.
func NewFetcher(timeout time.Duration, maxSize int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}

	return &Fetcher{
		httpClient: resty.New().
			SetTimeout(timeout).
			SetHeaders(map[string]string{
				"Accept":     "image/*",
				"User-Agent": "VisualMatch/1.0",
			}),
		maxSize: maxSize,
	}
}

// FetchImage downloads imageURL. Only http and https URLs are followed, the
// response must be an image and no larger than the size limit.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL string) (*domain.Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported URL %q", domain.ErrImageFetch, imageURL)
	}

	res, err := f.httpClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageFetch, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrImageFetch, res.StatusCode())
	}

	if res.RawResponse.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: image too large: %d bytes exceeds limit of %d bytes",
			domain.ErrImageFetch, res.RawResponse.ContentLength, f.maxSize)
	}

	// Content-Length may be missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrImageFetch, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: image too large: exceeds limit of %d bytes", domain.ErrImageFetch, f.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrImageFetch)
	}

	mimeType, err := imageMIMEType(res.Header().Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("component", "imagefetch").Str("url", imageURL).Int("bytes", len(data)).Msg("image fetched")
	return &domain.Image{Data: data, MIMEType: mimeType}, nil
}

// imageMIMEType trusts a declared image type and sniffs the bytes otherwise
func imageMIMEType(contentType string, data []byte) (string, error) {
	declared, _, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	if declared != "" && declared != "application/octet-stream" && declared != "binary/octet-stream" {
		return "", fmt.Errorf("%w: invalid content type: expected image/*, got %s", domain.ErrImageFetch, contentType)
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if !strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("%w: invalid content type: body is %s", domain.ErrImageFetch, sniffed)
	}
	return sniffed, nil
}
