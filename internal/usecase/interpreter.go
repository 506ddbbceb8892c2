package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/visualmatch/backend/internal/domain"
)

// Defaults substituted for any field the AI reply does not provide
const (
	DefaultStyle              = "Unknown style"
	DefaultImageDescription   = "No description available"
	DefaultAnalysisConfidence = 0.5
	DefaultSearchQuery        = "product search"

	DefaultSimilarityScore      = 50
	DefaultComparisonConfidence = 0.5
	FeaturesNotAvailable        = "Features not available"
)

// Package-level compiled regex patterns for performance
var (
	newlinesRegex = regexp.MustCompile(`[\r\n]+`)

	// fieldKeyRegex locates every recognised "<field>:" keyword of the analysis format
	fieldKeyRegex = regexp.MustCompile(`(?i)\b(objects|colors|style|description|confidence|query)\s*:`)

	bracketedListRegex = regexp.MustCompile(`^\s*\[([^\]]+)\]`)
	listSeparatorRegex = regexp.MustCompile(`[,;]`)
	leadingNumberRegex = regexp.MustCompile(`^\s*\[?\s*([0-9]*\.?[0-9]+)`)

	similarityRegex         = regexp.MustCompile(`(?i)similarity:\s*\[?\s*(-?[0-9]+)`)
	comparisonFeaturesRegex = regexp.MustCompile(`(?i)features:\s*\[([^\]]+)\]`)
	comparisonConfRegex     = regexp.MustCompile(`(?i)confidence:\s*\[?\s*([0-9]*\.?[0-9]+)`)
)

// ParseAnalysis interprets a free-text analysis reply of the loose form
//
//	objects: [...], colors: [...], style: ..., description: ..., confidence: ..., query: ...
//
// Each field is extracted independently and replaced by its default when absent,
// so any reply yields a complete record.
func ParseAnalysis(text string) domain.AnalysisRecord {
	clean := normalizeReply(text)
	fields, queryTail := splitFields(clean)

	record := domain.AnalysisRecord{
		DetectedObjects:  parseList(fields["objects"]),
		DominantColors:   parseList(fields["colors"]),
		StyleDescription: DefaultStyle,
		ImageDescription: DefaultImageDescription,
		Confidence:       DefaultAnalysisConfidence,
		SearchQuery:      DefaultSearchQuery,
	}

	if style := parseScalar(fields["style"]); style != "" {
		record.StyleDescription = style
	}
	if description := parseScalar(fields["description"]); description != "" {
		record.ImageDescription = description
	}
	if conf, ok := parseLeadingFloat(fields["confidence"]); ok {
		record.Confidence = conf
	}
	if query := parseScalar(queryTail); query != "" {
		record.SearchQuery = query
	}

	return record
}

// ParseComparison interprets a reply of the form
// "similarity: <int>, features: [...], confidence: <float>".
// The score is clamped to [0,100].
func ParseComparison(text string) domain.ComparisonResult {
	clean := normalizeReply(text)

	result := domain.ComparisonResult{
		SimilarityScore:  DefaultSimilarityScore,
		MatchingFeatures: []string{FeaturesNotAvailable},
		Confidence:       DefaultComparisonConfidence,
	}

	if m := similarityRegex.FindStringSubmatch(clean); m != nil {
		score, err := strconv.Atoi(m[1])
		// Out-of-range integers come back saturated, which clamping handles
		if err == nil || errors.Is(err, strconv.ErrRange) {
			result.SimilarityScore = domain.ClampScore(score)
		}
	}

	if m := comparisonFeaturesRegex.FindStringSubmatch(clean); m != nil {
		if features := splitTrimmed(m[1], ","); len(features) > 0 {
			result.MatchingFeatures = features
		}
	}

	if m := comparisonConfRegex.FindStringSubmatch(clean); m != nil {
		if conf, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.Confidence = conf
		}
	}

	return result
}

// normalizeReply collapses newlines into spaces and drops markdown emphasis
func normalizeReply(text string) string {
	text = newlinesRegex.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "**", "")
	return strings.TrimSpace(text)
}

// splitFields maps each field keyword to the text between it and the next
// recognised keyword. The first occurrence of a keyword wins. queryTail is
// everything after the query keyword, since the query is the remainder of
// the reply.
func splitFields(text string) (fields map[string]string, queryTail string) {
	fields = make(map[string]string)
	matches := fieldKeyRegex.FindAllStringSubmatchIndex(text, -1)

	for i, m := range matches {
		key := strings.ToLower(text[m[2]:m[3]])
		if _, seen := fields[key]; seen {
			continue
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		fields[key] = text[m[1]:end]

		if key == "query" {
			queryTail = text[m[1]:]
		}
	}

	return fields, queryTail
}

// parseList prefers the bracketed form and falls back to the raw
// comma-delimited segment
func parseList(segment string) []string {
	if m := bracketedListRegex.FindStringSubmatch(segment); m != nil {
		segment = m[1]
	}

	segment = bracketStripper.Replace(segment)
	return splitTrimmed(listSeparatorRegex.ReplaceAllString(segment, ","), ",")
}

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// parseScalar trims separators left over from the surrounding format and a
// single pair of enclosing brackets or quotes
func parseScalar(segment string) string {
	value := strings.TrimSpace(segment)
	value = strings.TrimRight(value, ",; ")
	value = strings.TrimSpace(value)

	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '[' && last == ']') || (first == '"' && last == '"') {
			value = strings.TrimSpace(value[1 : len(value)-1])
		}
	}

	return value
}

func parseLeadingFloat(segment string) (float64, bool) {
	m := leadingNumberRegex.FindStringSubmatch(segment)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// splitTrimmed splits s on sep, trims every part and drops empty ones
func splitTrimmed(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
