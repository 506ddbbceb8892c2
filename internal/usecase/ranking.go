package usecase

import (
	"slices"
	"strings"

	"github.com/visualmatch/backend/internal/domain"
)

// DefaultPageSize matches the "show more" step of the result grids
const DefaultPageSize = 10

// SortByMatch orders candidates by descending match percentage in place.
// The sort is stable: equal scores keep their original fetch order.
func SortByMatch[T domain.Candidate](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return b.MatchScore() - a.MatchScore()
	})
}

// FilterByRange returns the candidates whose score lies in r, sorted by
// descending score. The input slice is not modified.
func FilterByRange[T domain.Candidate](items []T, r domain.ScoreRange) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if r.Contains(item.MatchScore()) {
			out = append(out, item)
		}
	}
	SortByMatch(out)
	return out
}

// FilterByTag returns the candidates whose searchable text contains tag,
// case-insensitively, in their current order. An empty tag keeps everything.
func FilterByTag[T domain.Candidate](items []T, tag string) []T {
	needle := strings.ToLower(strings.TrimSpace(tag))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if needle == "" || containsFold(item.SearchableText(), needle) {
			out = append(out, item)
		}
	}
	return out
}

func containsFold(fields []string, needle string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Paginate returns the window [offset, offset+limit) of items. A non-positive
// limit means DefaultPageSize.
func Paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
