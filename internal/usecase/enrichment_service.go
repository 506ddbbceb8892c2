package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
	"golang.org/x/time/rate"
)

// Feature notes attached to candidates that did not get a real comparison
const (
	NoteGeneralNotCompared = "Image comparison not available for general results"
	NoteNoImage            = "No image available for comparison"
	NoteComparisonFailed   = "Comparison failed"
	NoteComparisonSkipped  = "Comparison skipped for performance"
	NoteVisualUnavailable  = "Visual comparison unavailable"
)

const (
	DefaultMaxComparisons  = 10
	DefaultCompareInterval = time.Second
)

// ImageComparer scores two images against each other
type ImageComparer interface {
	Compare(ctx context.Context, uploaded, candidate domain.Image) (*domain.ComparisonResult, error)
}

// Throttle gates each outgoing comparison call. *rate.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// NewIntervalThrottle allows one call per interval with no burst
func NewIntervalThrottle(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// EnrichmentConfig holds configuration for the enrichment service
type EnrichmentConfig struct {
	MaxComparisons int
	// Throttle defaults to one comparison per DefaultCompareInterval
	Throttle Throttle
}

// EnrichmentService attaches similarity scores to search candidates
type EnrichmentService struct {
	comparer       ImageComparer
	fetcher        domain.ImageFetcher
	throttle       Throttle
	maxComparisons int
}

// NewEnrichmentService creates a new enrichment service with dependencies
func NewEnrichmentService(
	comparer ImageComparer,
	fetcher domain.ImageFetcher,
	config EnrichmentConfig,
) *EnrichmentService {
	maxComparisons := config.MaxComparisons
	if maxComparisons <= 0 {
		maxComparisons = DefaultMaxComparisons
	}

	throttle := config.Throttle
	if throttle == nil {
		throttle = NewIntervalThrottle(DefaultCompareInterval)
	}

	return &EnrichmentService{
		comparer:       comparer,
		fetcher:        fetcher,
		throttle:       throttle,
		maxComparisons: maxComparisons,
	}
}

// EnrichGeneral tags every general-web candidate as not compared and returns
// a sorted copy
func (s *EnrichmentService) EnrichGeneral(results []domain.GeneralResult) []domain.GeneralResult {
	enriched := make([]domain.GeneralResult, len(results))
	for i, r := range results {
		r.Enrichment = domain.NewEnrichment(0, []string{NoteGeneralNotCompared}, nil)
		enriched[i] = r
	}
	SortByMatch(enriched)
	return enriched
}

// EnrichShopping compares the uploaded image with the thumbnails of the first
// maxComparisons candidates, one call at a time, and tags the rest as skipped.
// A failing candidate never aborts the batch. The returned copy is sorted.
func (s *EnrichmentService) EnrichShopping(
	ctx context.Context,
	uploaded domain.Image,
	results []domain.ShoppingResult,
) []domain.ShoppingResult {
	enriched := make([]domain.ShoppingResult, len(results))

	for i, r := range results {
		if i >= s.maxComparisons {
			r.Enrichment = domain.NewEnrichment(0, []string{NoteComparisonSkipped}, nil)
		} else {
			r.Enrichment = s.compareOne(ctx, uploaded, r)
		}
		enriched[i] = r
	}

	SortByMatch(enriched)
	return enriched
}

// compareOne produces the enrichment for a single shopping candidate
func (s *EnrichmentService) compareOne(ctx context.Context, uploaded domain.Image, r domain.ShoppingResult) domain.Enrichment {
	logger := log.With().Str("component", "enrichment").Str("title", r.Title).Logger()

	if r.Image == "" {
		return domain.NewEnrichment(0, []string{NoteNoImage}, nil)
	}

	if err := s.throttle.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("comparison throttle aborted")
		return domain.NewEnrichment(0, []string{NoteComparisonFailed}, nil)
	}

	thumbnail, err := s.fetcher.FetchImage(ctx, r.Image)
	if err != nil {
		logger.Warn().Err(err).Str("thumbnail", r.Image).Msg("thumbnail fetch failed, using default comparison")
		confidence := DefaultComparisonConfidence
		return domain.NewEnrichment(DefaultSimilarityScore, []string{NoteVisualUnavailable}, &confidence)
	}

	comparison, err := s.comparer.Compare(ctx, uploaded, *thumbnail)
	if err != nil {
		logger.Error().Err(err).Msg("comparison failed")
		return domain.NewEnrichment(0, []string{NoteComparisonFailed}, nil)
	}

	confidence := comparison.Confidence
	logger.Debug().Int("score", comparison.SimilarityScore).Msg("candidate compared")
	return domain.NewEnrichment(comparison.SimilarityScore, comparison.MatchingFeatures, &confidence)
}
