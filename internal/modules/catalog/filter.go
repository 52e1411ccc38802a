package catalog

import (
	"sort"
	"strings"

	"github.com/forgespec/core/internal/models"
)

// SortOption orders catalog listings.
type SortOption string

const (
	SortNewest SortOption = "newest"
	SortOldest SortOption = "oldest"
	SortName   SortOption = "name"
	SortType   SortOption = "type"
)

// ParseSort maps a query value onto a known option, defaulting to newest.
func ParseSort(raw string) SortOption {
	switch SortOption(strings.ToLower(strings.TrimSpace(raw))) {
	case SortOldest:
		return SortOldest
	case SortName:
		return SortName
	case SortType:
		return SortType
	default:
		return SortNewest
	}
}

// FilterAndSort narrows records to those matching the query and orders them.
// It never mutates its input; the query matches case-insensitively against
// file name, summary and every keyword.
func FilterAndSort(records []models.SpecRecord, query string, sortBy SortOption) []models.SpecRecord {
	out := make([]models.SpecRecord, 0, len(records))

	needle := strings.ToLower(strings.TrimSpace(query))
	for _, rec := range records {
		if needle == "" || matches(rec, needle) {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortBy {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortName:
			return strings.ToLower(a.FileName) < strings.ToLower(b.FileName)
		case SortType:
			if a.FileType != b.FileType {
				return a.FileType < b.FileType
			}
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return out
}

func matches(rec models.SpecRecord, needle string) bool {
	if strings.Contains(strings.ToLower(rec.FileName), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Summary), needle) {
		return true
	}
	for _, kw := range rec.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}
