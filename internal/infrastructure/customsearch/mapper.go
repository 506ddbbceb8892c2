package customsearch

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/visualmatch/backend/internal/domain"
	cs "google.golang.org/api/customsearch/v1"
)

// PriceNotAvailable is shown when a shopping snippet carries no dollar amount
const PriceNotAvailable = "Price not available"

var priceRegex = regexp.MustCompile(`\$[0-9,.]+`)

// pagemap is the subset of the structured data Google attaches to a result
type pagemap struct {
	CSEThumbnail    []pagemapImage  `json:"cse_thumbnail"`
	CSEImage        []pagemapImage  `json:"cse_image"`
	AggregateRating []pagemapRating `json:"aggregaterating"`
}

type pagemapImage struct {
	Src string `json:"src"`
}

// Pagemap values arrive as strings
type pagemapRating struct {
	RatingValue string `json:"ratingvalue"`
	ReviewCount string `json:"reviewcount"`
	RatingCount string `json:"ratingcount"`
}

// MapGeneralResults converts search items to general-web candidates
func MapGeneralResults(items []*cs.Result) []domain.GeneralResult {
	results := make([]domain.GeneralResult, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		results = append(results, domain.GeneralResult{
			Title:       item.Title,
			URL:         item.Link,
			Description: item.Snippet,
			Snippet:     item.Snippet,
		})
	}
	return results
}

// MapShoppingResults converts search items to shopping candidates
func MapShoppingResults(items []*cs.Result) []domain.ShoppingResult {
	results := make([]domain.ShoppingResult, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		pm := decodePagemap(item.Pagemap)
		result := domain.ShoppingResult{
			Title:  item.Title,
			URL:    item.Link,
			Price:  ExtractPrice(item.Snippet),
			Image:  pm.thumbnail(),
			Source: SourceName(item.DisplayLink, item.Link),
		}
		result.Rating, result.Reviews = pm.rating()

		results = append(results, result)
	}
	return results
}

// ExtractPrice returns the first dollar amount in the snippet
func ExtractPrice(snippet string) string {
	if price := priceRegex.FindString(snippet); price != "" {
		return price
	}
	return PriceNotAvailable
}

// SourceName prefers the display link and falls back to the link's host
// without a leading "www."
func SourceName(displayLink, link string) string {
	if displayLink != "" {
		return displayLink
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func decodePagemap(raw []byte) pagemap {
	var pm pagemap
	if len(raw) == 0 {
		return pm
	}
	// Malformed structured data just means no thumbnail or rating
	_ = json.Unmarshal(raw, &pm)
	return pm
}

func (p pagemap) thumbnail() string {
	if len(p.CSEThumbnail) > 0 && p.CSEThumbnail[0].Src != "" {
		return p.CSEThumbnail[0].Src
	}
	if len(p.CSEImage) > 0 {
		return p.CSEImage[0].Src
	}
	return ""
}

func (p pagemap) rating() (*float64, *int) {
	if len(p.AggregateRating) == 0 {
		return nil, nil
	}
	agg := p.AggregateRating[0]

	var rating *float64
	if v, err := strconv.ParseFloat(strings.TrimSpace(agg.RatingValue), 64); err == nil {
		rating = &v
	}

	count := agg.ReviewCount
	if count == "" {
		count = agg.RatingCount
	}
	var reviews *int
	if n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(count), ",", "")); err == nil {
		reviews = &n
	}

	return rating, reviews
}
