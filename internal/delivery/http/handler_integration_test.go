package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualmatch/backend/config"
	"github.com/visualmatch/backend/internal/domain"
	"github.com/visualmatch/backend/internal/infrastructure/cache"
	"github.com/visualmatch/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeMatcher is a scripted MatcherUsecase
type fakeMatcher struct {
	configured bool
	set        *domain.RankedResultSet
	page       *domain.ResultPage
	err        error

	lastRequest *domain.SearchRequest
	lastID      string
	lastView    domain.ResultView
}

func (f *fakeMatcher) Search(ctx context.Context, request *domain.SearchRequest) (*domain.RankedResultSet, error) {
	f.lastRequest = request
	return f.set, f.err
}

func (f *fakeMatcher) Results(ctx context.Context, id string, view domain.ResultView) (*domain.ResultPage, error) {
	f.lastID = id
	f.lastView = view
	return f.page, f.err
}

func (f *fakeMatcher) Discard(ctx context.Context, id string) error {
	f.lastID = id
	return f.err
}

func (f *fakeMatcher) Configured() bool {
	return f.configured
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Image: config.ImageConfig{MaxBytes: 1024},
	}
}

// setupTestRouter creates a test router around matcher
func setupTestRouter(matcher MatcherUsecase) *gin.Engine {
	cfg := testConfig()
	return SetupRouter(cfg, NewHandler(matcher, cfg.Image.MaxBytes))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func multipartImage(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "visualmatch-backend", response["service"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(nil)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		matcher MatcherUsecase
		want    bool
	}{
		{name: "nil matcher", matcher: nil, want: false},
		{name: "missing credentials", matcher: &fakeMatcher{configured: false}, want: false},
		{name: "configured", matcher: &fakeMatcher{configured: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupTestRouter(tt.matcher).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/status", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decodeBody(t, w)["configured"])
		})
	}
}

func TestCreateSearchEndpoint(t *testing.T) {
	t.Run("returns 503 when not configured", func(t *testing.T) {
		matcher := &fakeMatcher{configured: false}

		req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(`{"imageUrl":"https://x/y.png"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "not configured")
		assert.Nil(t, matcher.lastRequest)
	})

	t.Run("accepts JSON image data", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, set: &domain.RankedResultSet{
			ID: "abc",
			Shopping: []domain.ShoppingResult{
				{Title: "a", Enrichment: domain.NewEnrichment(90, nil, nil)},
				{Title: "b", Enrichment: domain.NewEnrichment(10, nil, nil)},
			},
		}}

		req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(`{"imageData":"data:image/png;base64,iVBORw0KGgo="}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "abc", response["id"])
		assert.EqualValues(t, 2, response["totalShopping"])
		assert.EqualValues(t, usecase.DefaultPageSize, response["limit"])
		require.NotNil(t, matcher.lastRequest)
		assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", matcher.lastRequest.ImageData)
	})

	t.Run("accepts multipart upload", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, set: &domain.RankedResultSet{ID: "abc"}}
		body, contentType := multipartImage(t, "image/png", pngBytes)

		req := httptest.NewRequest("POST", "/api/v1/searches", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, matcher.lastRequest)
		require.NotNil(t, matcher.lastRequest.Upload)
		assert.Equal(t, "image/png", matcher.lastRequest.Upload.MIMEType)
		assert.Equal(t, pngBytes, matcher.lastRequest.Upload.Data)
	})

	t.Run("sniffs upload type when part type is generic", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, set: &domain.RankedResultSet{ID: "abc"}}
		body, contentType := multipartImage(t, "application/octet-stream", pngBytes)

		req := httptest.NewRequest("POST", "/api/v1/searches", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "image/png", matcher.lastRequest.Upload.MIMEType)
	})

	t.Run("rejects non-image upload", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true}
		body, contentType := multipartImage(t, "text/plain", []byte("hello"))

		req := httptest.NewRequest("POST", "/api/v1/searches", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, matcher.lastRequest)
	})

	t.Run("rejects oversized upload", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true}
		body, contentType := multipartImage(t, "image/jpeg", make([]byte, 2048))

		req := httptest.NewRequest("POST", "/api/v1/searches", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects oversized inline image", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, set: &domain.RankedResultSet{ID: "abc"}}
		payload := `{"imageData":"data:image/jpeg;base64,` +
			base64.StdEncoding.EncodeToString(make([]byte, 64*1024)) + `"}`

		req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "exceeds")
		assert.Nil(t, matcher.lastRequest)
	})

	t.Run("accepts inline image at the limit", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, set: &domain.RankedResultSet{ID: "abc"}}
		payload := `{"imageData":"data:image/jpeg;base64,` +
			base64.StdEncoding.EncodeToString(make([]byte, 1024)) + `"}`

		req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, matcher.lastRequest)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(`{"imageData":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupTestRouter(&fakeMatcher{configured: true}).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps usecase errors to status codes", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{domain.ErrInvalidImage, http.StatusBadRequest},
			{domain.ErrImageFetch, http.StatusUnprocessableEntity},
			{domain.ErrAIAPIFailure, http.StatusBadGateway},
			{domain.ErrEmptyReply, http.StatusBadGateway},
			{domain.ErrSearchAPIFailure, http.StatusBadGateway},
			{errors.New("boom"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			matcher := &fakeMatcher{configured: true, err: tt.err}
			req := httptest.NewRequest("POST", "/api/v1/searches", strings.NewReader(`{"imageUrl":"https://x/y.png"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			setupTestRouter(matcher).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, "error %v", tt.err)
		}
	})
}

func TestGetResultsEndpoint(t *testing.T) {
	t.Run("parses view from query", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, page: &domain.ResultPage{ID: "abc"}}

		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/abc?min=50&max=80&offset=10&limit=5", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc", matcher.lastID)
		assert.Equal(t, domain.ResultView{Range: domain.ScoreRange{Min: 50, Max: 80}, Offset: 10, Limit: 5}, matcher.lastView)
	})

	t.Run("defaults to full range first page", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true, page: &domain.ResultPage{ID: "abc"}}

		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/abc?tag=shoe", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.FullRange, matcher.lastView.Range)
		assert.Equal(t, "shoe", matcher.lastView.Tag)
		assert.Equal(t, usecase.DefaultPageSize, matcher.lastView.Limit)
	})

	t.Run("rejects non-numeric bounds", func(t *testing.T) {
		matcher := &fakeMatcher{configured: true}

		w := httptest.NewRecorder()
		setupTestRouter(matcher).ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/abc?min=low", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, matcher.lastID)
	})

	t.Run("maps invalid range and missing set", func(t *testing.T) {
		for err, status := range map[error]int{
			domain.ErrInvalidRange:      http.StatusBadRequest,
			domain.ErrResultSetNotFound: http.StatusNotFound,
		} {
			w := httptest.NewRecorder()
			setupTestRouter(&fakeMatcher{configured: true, err: err}).
				ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/abc", nil))
			assert.Equal(t, status, w.Code, "error %v", err)
		}
	})
}

func TestDeleteSearchEndpoint(t *testing.T) {
	matcher := &fakeMatcher{configured: true}

	w := httptest.NewRecorder()
	setupTestRouter(matcher).ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/searches/abc", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "abc", matcher.lastID)
}

func TestCORSIntegration(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	setupTestRouter(nil).ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

// End-to-end through the real matcher service with scripted upstreams

type scriptedModel struct{}

func (scriptedModel) GenerateContent(ctx context.Context, prompt string, images ...domain.Image) (string, error) {
	if len(images) == 1 {
		return "objects: [sneaker], colors: [white], style: sporty, description: A sneaker, confidence: 0.9, query: white sneaker", nil
	}
	// Thumbnail bytes are the URL, see staticFetcher
	if strings.Contains(string(images[1].Data), "close") {
		return "similarity: 92, features: [shoe shape, white sole], confidence: 0.9", nil
	}
	return "similarity: 40, features: [color], confidence: 0.6", nil
}

type scriptedSearch struct{}

func (scriptedSearch) SearchGeneral(ctx context.Context, query string) ([]domain.GeneralResult, error) {
	return []domain.GeneralResult{{Title: "Sneaker history", URL: "https://blog.example/history"}}, nil
}

func (scriptedSearch) SearchShopping(ctx context.Context, query string) ([]domain.ShoppingResult, error) {
	return []domain.ShoppingResult{
		{Title: "Far match", Image: "https://img.example/far.jpg"},
		{Title: "Close match", Image: "https://img.example/close.jpg"},
	}, nil
}

type staticFetcher struct{}

func (staticFetcher) FetchImage(ctx context.Context, imageURL string) (*domain.Image, error) {
	return &domain.Image{Data: []byte(imageURL), MIMEType: "image/jpeg"}, nil
}

func TestSearchFlowIntegration(t *testing.T) {
	store := cache.NewResultStore(time.Minute)
	defer store.Close()

	analyzer := usecase.NewAnalysisService(scriptedModel{})
	enricher := usecase.NewEnrichmentService(analyzer, staticFetcher{}, usecase.EnrichmentConfig{
		Throttle: usecase.NewIntervalThrottle(0),
	})
	matcher := usecase.NewMatcherService(analyzer, scriptedSearch{}, staticFetcher{}, store, enricher, usecase.MatcherServiceConfig{
		Credentials: domain.Credentials{GeminiAPIKey: "g", SearchAPIKey: "s", SearchCX: "cx"},
	})
	router := setupTestRouter(matcher)

	body, contentType := multipartImage(t, "image/png", pngBytes)
	req := httptest.NewRequest("POST", "/api/v1/searches", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var set domain.ResultPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	require.NotEmpty(t, set.ID)
	assert.Equal(t, 2, set.TotalShopping)
	assert.Equal(t, domain.FullRange, set.Range)
	assert.Equal(t, usecase.DefaultPageSize, set.Limit)
	require.Len(t, set.Shopping, 2)
	assert.Equal(t, "Close match", set.Shopping[0].Title)
	assert.Equal(t, 92, set.Shopping[0].MatchPercentage)
	assert.Equal(t, domain.TierExcellent, set.Shopping[0].MatchTier)
	assert.Equal(t, 40, set.Shopping[1].MatchPercentage)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/"+set.ID+"?min=50&max=100", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.ResultPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalShopping)
	assert.Equal(t, 0, page.TotalGeneral)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/"+set.ID+"?tag=sole", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalShopping)
	assert.Equal(t, "Close match", page.Shopping[0].Title)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/searches/"+set.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/searches/"+set.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
