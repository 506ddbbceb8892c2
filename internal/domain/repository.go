package domain

import (
	"context"
	"time"
)

// VisionModel sends a prompt plus inline images to a multimodal model and
// returns the free-text reply
type VisionModel interface {
	GenerateContent(ctx context.Context, prompt string, images ...Image) (string, error)
}

// SearchEngine runs the general-web and shopping searches
type SearchEngine interface {
	SearchGeneral(ctx context.Context, query string) ([]GeneralResult, error)
	SearchShopping(ctx context.Context, query string) ([]ShoppingResult, error)
}

// ImageFetcher downloads an image resource
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*Image, error)
}

// ResultSetRepository holds ranked result sets between requests.
// Result sets are never persisted across process restarts.
type ResultSetRepository interface {
	Save(ctx context.Context, set *RankedResultSet, ttl time.Duration) error
	Get(ctx context.Context, id string) (*RankedResultSet, error)
	Delete(ctx context.Context, id string) error
}
