package domain

import (
	"fmt"
	"strings"
	"time"
)

// Match tiers, mirroring how result cards colour a score
const (
	TierExcellent = "excellent" // >= 90
	TierStrong    = "strong"    // >= 80
	TierGood      = "good"      // >= 70
	TierFair      = "fair"      // >= 50
	TierWeak      = "weak"
)

// Enrichment is attached to every candidate by the enrichment stage.
// An uncompared candidate has MatchPercentage 0, never a missing value.
type Enrichment struct {
	MatchPercentage      int      `json:"matchPercentage"`
	MatchingFeatures     []string `json:"matchingFeatures"`
	ComparisonConfidence *float64 `json:"comparisonConfidence,omitempty"`
	MatchTier            string   `json:"matchTier"`
}

// NewEnrichment builds an enrichment with the score clamped to [0,100]
func NewEnrichment(score int, features []string, confidence *float64) Enrichment {
	score = ClampScore(score)
	if features == nil {
		features = []string{}
	}
	return Enrichment{
		MatchPercentage:      score,
		MatchingFeatures:     features,
		ComparisonConfidence: confidence,
		MatchTier:            TierFor(score),
	}
}

// MatchScore returns the match percentage
func (e Enrichment) MatchScore() int {
	return e.MatchPercentage
}

// ClampScore bounds a similarity score to [0,100]
func ClampScore(score int) int {
	return min(100, max(0, score))
}

// TierFor labels a match percentage
func TierFor(score int) string {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 80:
		return TierStrong
	case score >= 70:
		return TierGood
	case score >= 50:
		return TierFair
	default:
		return TierWeak
	}
}

// GeneralResult is a general-web search candidate
type GeneralResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
	Enrichment
}

// SearchableText returns the fields the tag filter looks into
func (r GeneralResult) SearchableText() []string {
	return []string{r.Title, r.Description, r.Snippet, joinFeatures(r.MatchingFeatures)}
}

// ShoppingResult is a shopping search candidate
type ShoppingResult struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Price   string   `json:"price"`
	Image   string   `json:"image"` // thumbnail URL, empty when the result has none
	Source  string   `json:"source"`
	Rating  *float64 `json:"rating,omitempty"`
	Reviews *int     `json:"reviews,omitempty"`
	Enrichment
}

// SearchableText returns the fields the tag filter looks into
func (r ShoppingResult) SearchableText() []string {
	return []string{r.Title, joinFeatures(r.MatchingFeatures)}
}

func joinFeatures(features []string) string {
	return strings.Join(features, " ")
}

// Candidate is implemented by both result variants
type Candidate interface {
	MatchScore() int
	SearchableText() []string
}

// RankedResultSet is the outcome of one search: both lists enriched and sorted
// by descending match percentage.
type RankedResultSet struct {
	ID        string           `json:"id"`
	Analysis  AnalysisRecord   `json:"analysis"`
	General   []GeneralResult  `json:"general"`
	Shopping  []ShoppingResult `json:"shopping"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ScoreRange is an inclusive similarity range
type ScoreRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FullRange is the reset state of the similarity filter
var FullRange = ScoreRange{Min: 0, Max: 100}

// Validate checks the range lies within [0,100] and is not inverted
func (r ScoreRange) Validate() error {
	if r.Min < 0 || r.Max > 100 || r.Min > r.Max {
		return fmt.Errorf("%w: [%d,%d]", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Contains reports whether score falls inside the range
func (r ScoreRange) Contains(score int) bool {
	return score >= r.Min && score <= r.Max
}

// ResultView selects which part of a stored result set to return.
// A non-empty Tag filters the full set regardless of Range.
type ResultView struct {
	Range  ScoreRange
	Tag    string
	Offset int
	Limit  int
}

// ResultPage is one page of a filtered result set
type ResultPage struct {
	ID            string           `json:"id"`
	Analysis      AnalysisRecord   `json:"analysis"`
	General       []GeneralResult  `json:"general"`
	Shopping      []ShoppingResult `json:"shopping"`
	TotalGeneral  int              `json:"totalGeneral"`
	TotalShopping int              `json:"totalShopping"`
	Range         ScoreRange       `json:"range"`
	Tag           string           `json:"tag,omitempty"`
	Offset        int              `json:"offset"`
	Limit         int              `json:"limit"`
}
