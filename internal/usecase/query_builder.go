package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// shoppingQuerySuffix biases the shopping search towards retail pages
const shoppingQuerySuffix = "buy shop purchase price sale discount"

// maxQueryLength keeps queries well under the search API limits
const maxQueryLength = 100

// Compiled regex patterns for query cleaning
var (
	// Brackets, quotes and markdown the model tends to echo from the prompt format
	queryDecorationPattern = regexp.MustCompile("[\\[\\]{}\"`*]")

	// Orphaned separators left after cleaning, e.g. " , " or trailing ";"
	orphanedSeparatorPattern = regexp.MustCompile(`\s+[,;:|]+\s+|[,;:|]+\s*$|^\s*[,;:|]+`)

	// Prompt wording the model sometimes echoes around the actual query
	promptEchoPattern = regexp.MustCompile(`(?i)\b(?:search\s+(?:terms?|query)|similar\s+(?:products?|items?))\b`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// Queries is the pair of search strings derived from an analysis record
type Queries struct {
	General  string
	Shopping string
}

// QueryBuilder turns the AI-suggested search query into search-engine queries
type QueryBuilder struct {
	enableDebugLogging bool
}

// NewQueryBuilder creates a new query builder
func NewQueryBuilder(enableDebugLogging bool) *QueryBuilder {
	return &QueryBuilder{
		enableDebugLogging: enableDebugLogging,
	}
}

// Build cleans the suggested query and derives the shopping variant.
// An empty or echo-only suggestion falls back to DefaultSearchQuery.
func (b *QueryBuilder) Build(suggested string) Queries {
	general := b.Clean(suggested)
	if general == "" {
		general = DefaultSearchQuery
	}

	queries := Queries{
		General:  general,
		Shopping: general + " " + shoppingQuerySuffix,
	}

	if b.enableDebugLogging {
		log.Debug().
			Str("component", "query").
			Str("input", suggested).
			Str("general", queries.General).
			Str("shopping", queries.Shopping).
			Msg("queries built")
	}

	return queries
}

// Clean strips prompt decoration and echoed prompt phrases, normalizes
// whitespace and caps the length, preferring a word boundary
func (b *QueryBuilder) Clean(query string) string {
	if query == "" {
		return ""
	}

	cleaned := queryDecorationPattern.ReplaceAllString(query, " ")
	cleaned = promptEchoPattern.ReplaceAllString(cleaned, " ")
	cleaned = orphanedSeparatorPattern.ReplaceAllString(cleaned, " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > maxQueryLength {
		cut := maxQueryLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	return cleaned
}
