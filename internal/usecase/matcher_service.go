package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultResultTTL is how long a ranked result set stays available for filtering
const DefaultResultTTL = 30 * time.Minute

// MatcherServiceConfig holds configuration for the matcher service
type MatcherServiceConfig struct {
	Credentials        domain.Credentials
	ResultTTL          time.Duration
	EnableDebugLogging bool
}

// MatcherService runs the full visual matching pipeline and serves filtered
// views of its results
type MatcherService struct {
	analyzer    *AnalysisService
	search      domain.SearchEngine
	fetcher     domain.ImageFetcher
	store       domain.ResultSetRepository
	enricher    *EnrichmentService
	queries     *QueryBuilder
	credentials domain.Credentials
	resultTTL   time.Duration
	newID       func() string
	now         func() time.Time
}

// NewMatcherService creates a new matcher service with dependencies
func NewMatcherService(
	analyzer *AnalysisService,
	search domain.SearchEngine,
	fetcher domain.ImageFetcher,
	store domain.ResultSetRepository,
	enricher *EnrichmentService,
	config MatcherServiceConfig,
) *MatcherService {
	resultTTL := config.ResultTTL
	if resultTTL == 0 {
		resultTTL = DefaultResultTTL
	}

	return &MatcherService{
		analyzer:    analyzer,
		search:      search,
		fetcher:     fetcher,
		store:       store,
		enricher:    enricher,
		queries:     NewQueryBuilder(config.EnableDebugLogging),
		credentials: config.Credentials,
		resultTTL:   resultTTL,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Configured reports whether all credentials are present
func (s *MatcherService) Configured() bool {
	return s.credentials.Configured()
}

// Search analyzes the image, runs the general and shopping searches
// concurrently, enriches both lists concurrently and stores the ranked set.
// Flow: resolve image -> analyze -> search x2 -> enrich x2 -> store -> return
func (s *MatcherService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.RankedResultSet, error) {
	if !s.Configured() {
		return nil, domain.ErrNotConfigured
	}

	img, err := s.resolveImage(ctx, request)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(ctx, *img)
	if err != nil {
		return nil, asUpstream(err, domain.ErrAIAPIFailure)
	}

	queries := s.queries.Build(analysis.SearchQuery)

	var (
		general  []domain.GeneralResult
		shopping []domain.ShoppingResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		general, err = s.search.SearchGeneral(gctx, queries.General)
		return err
	})
	g.Go(func() error {
		var err error
		shopping, err = s.search.SearchShopping(gctx, queries.Shopping)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, asUpstream(err, domain.ErrSearchAPIFailure)
	}

	log.Info().
		Str("component", "matcher").
		Str("query", queries.General).
		Int("general", len(general)).
		Int("shopping", len(shopping)).
		Msg("search completed, enriching results")

	// Enrichment never fails as a whole; each task owns its output slice
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		general = s.enricher.EnrichGeneral(general)
		return nil
	})
	eg.Go(func() error {
		shopping = s.enricher.EnrichShopping(ectx, *img, shopping)
		return nil
	})
	_ = eg.Wait()

	set := &domain.RankedResultSet{
		ID:        s.newID(),
		Analysis:  *analysis,
		General:   general,
		Shopping:  shopping,
		CreatedAt: s.now(),
	}

	if err := s.store.Save(ctx, set, s.resultTTL); err != nil {
		// Log but don't fail: the caller still gets the full result set
		log.Warn().Err(err).Str("id", set.ID).Msg("failed to store result set")
	}

	return set, nil
}

// Results returns a filtered, paged view of a stored result set.
// A tag filter always runs over the full set, independent of the range.
func (s *MatcherService) Results(ctx context.Context, id string, view domain.ResultView) (*domain.ResultPage, error) {
	if id == "" {
		return nil, domain.ErrInvalidRequest
	}
	if view.Offset < 0 || view.Limit < 0 {
		return nil, fmt.Errorf("%w: negative offset or limit", domain.ErrInvalidRequest)
	}

	set, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return PageOf(set, view)
}

// PageOf filters and pages a ranked result set. A non-empty tag replaces
// the range filter.
func PageOf(set *domain.RankedResultSet, view domain.ResultView) (*domain.ResultPage, error) {
	var (
		general  []domain.GeneralResult
		shopping []domain.ShoppingResult
	)

	if view.Tag != "" {
		view.Range = domain.FullRange
		general = FilterByTag(set.General, view.Tag)
		shopping = FilterByTag(set.Shopping, view.Tag)
	} else {
		if err := view.Range.Validate(); err != nil {
			return nil, err
		}
		general = FilterByRange(set.General, view.Range)
		shopping = FilterByRange(set.Shopping, view.Range)
	}

	if view.Limit == 0 {
		view.Limit = DefaultPageSize
	}

	return &domain.ResultPage{
		ID:            set.ID,
		Analysis:      set.Analysis,
		General:       Paginate(general, view.Offset, view.Limit),
		Shopping:      Paginate(shopping, view.Offset, view.Limit),
		TotalGeneral:  len(general),
		TotalShopping: len(shopping),
		Range:         view.Range,
		Tag:           view.Tag,
		Offset:        view.Offset,
		Limit:         view.Limit,
	}, nil
}

// Discard drops a stored result set, e.g. when a new image replaces it
func (s *MatcherService) Discard(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidRequest
	}
	return s.store.Delete(ctx, id)
}

// DefaultResultView is the unfiltered first page
func DefaultResultView() domain.ResultView {
	return domain.ResultView{Range: domain.FullRange, Limit: DefaultPageSize}
}

// resolveImage turns the request into an inline image payload
func (s *MatcherService) resolveImage(ctx context.Context, request *domain.SearchRequest) (*domain.Image, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}

	sources := 0
	for _, set := range []bool{request.Upload != nil, request.ImageData != "", request.ImageURL != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("%w: exactly one image source is required", domain.ErrInvalidRequest)
	}

	switch {
	case request.Upload != nil:
		if len(request.Upload.Data) == 0 {
			return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidImage)
		}
		img := *request.Upload
		if img.MIMEType == "" {
			img.MIMEType = domain.DefaultImageMIMEType
		}
		return &img, nil
	case request.ImageData != "":
		return domain.ParseImageData(request.ImageData)
	default:
		img, err := s.fetcher.FetchImage(ctx, request.ImageURL)
		if err != nil {
			return nil, asUpstream(err, domain.ErrImageFetch)
		}
		return img, nil
	}
}

// asUpstream tags err with kind unless it already carries a domain error kind
func asUpstream(err, kind error) error {
	for _, known := range []error{
		domain.ErrAIAPIFailure,
		domain.ErrEmptyReply,
		domain.ErrSearchAPIFailure,
		domain.ErrImageFetch,
		domain.ErrInvalidImage,
		domain.ErrNotConfigured,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", kind, err)
}
