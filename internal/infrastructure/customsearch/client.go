package customsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
	"golang.org/x/time/rate"
	cs "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// DefaultBaseURL is the Custom Search JSON API root
	DefaultBaseURL = "https://customsearch.googleapis.com/"

	// ResultsPerQuery is the maximum page size the API accepts
	ResultsPerQuery = 10

	maxAttempts = 3
)

// Config holds configuration for the Custom Search client
type Config struct {
	APIKey  string
	CX      string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outgoing queries; the free tier allows 100 per day
	RequestsPerSecond float64
}

// Client runs general-web and shopping queries against Google Custom Search
type Client struct {
	service     *cs.Service
	cx          string
	configured  bool
	timeout     time.Duration
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new Custom Search client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	service, err := cs.NewService(ctx,
		option.WithAPIKey(cfg.APIKey),
		option.WithEndpoint(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		service:     service,
		cx:          cfg.CX,
		configured:  cfg.APIKey != "" && cfg.CX != "",
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(limit, 2), // both searches of one request may start together
		backoff:     exponentialBackoff,
	}, nil
}

// exponentialBackoff returns 500ms, 1s, 2s... for attempts 1, 2, 3...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// SearchGeneral runs the query as-is and maps the items to general-web candidates
func (c *Client) SearchGeneral(ctx context.Context, query string) ([]domain.GeneralResult, error) {
	items, err := c.search(ctx, "general", query)
	if err != nil {
		return nil, err
	}
	return MapGeneralResults(items), nil
}

// SearchShopping runs the shopping-biased query and maps the items to shopping candidates
func (c *Client) SearchShopping(ctx context.Context, query string) ([]domain.ShoppingResult, error) {
	items, err := c.search(ctx, "shopping", query)
	if err != nil {
		return nil, err
	}
	return MapShoppingResults(items), nil
}

// search executes one query, retrying transient failures
func (c *Client) search(ctx context.Context, kind, query string) ([]*cs.Result, error) {
	logger := log.With().Str("component", "customsearch").Str("kind", kind).Str("query", query).Logger()

	if !c.configured {
		logger.Warn().Msg("custom search not configured, returning no results")
		return []*cs.Result{}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSearchAPIFailure, err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.service.Cse.List().
			Cx(c.cx).
			Q(query).
			Num(ResultsPerQuery).
			Context(reqCtx).
			Do()
		cancel()

		if err == nil {
			logger.Debug().Int("items", len(resp.Items)).Msg("search completed")
			if resp.Items == nil {
				return []*cs.Result{}, nil
			}
			return resp.Items, nil
		}

		lastErr = fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, err)
		if !retryable(err) || attempt == maxAttempts {
			break
		}

		logger.Warn().Err(err).Int("attempt", attempt).Msg("search failed, retrying")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, ctx.Err())
		case <-time.After(c.backoff(attempt)):
		}
	}

	logger.Error().Err(lastErr).Msg("search failed")
	return nil, lastErr
}

// retryable reports whether a failed call may succeed on retry: server errors,
// rate limiting and transport errors are retried, other API errors are not
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
