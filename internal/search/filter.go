package search

import (
	"strings"

	"bingeworthy/searchservice/internal/domain"
)

// ratingTolerance lets an 8.0 filter keep a 7.5 title.
const ratingTolerance = 0.5

// yearTolerance keeps titles released within one year of the requested
// year. Release dates differ between regions and between theatrical and
// streaming premieres.
const yearTolerance = 1

// applyFilters drops items that fail any active constraint. Every filter
// must pass; there is no OR semantics between fields.
func applyFilters(items []domain.Content, filters domain.SearchFilters) []domain.Content {
	if !filters.Active() {
		return items
	}

	kind := domain.NormalizeContentKind(strings.ToLower(strings.TrimSpace(filters.Type)))
	genre := strings.ToLower(strings.TrimSpace(filters.Genre))
	lang := strings.ToUpper(strings.TrimSpace(filters.Language))
	country := strings.ToUpper(strings.TrimSpace(filters.Country))
	platform := strings.ToLower(strings.TrimSpace(filters.Platform))

	filtered := make([]domain.Content, 0, len(items))
	for _, item := range items {
		if kind != "" && item.Kind != kind {
			continue
		}
		if genre != "" && !strings.Contains(strings.ToLower(item.Genre), genre) {
			continue
		}
		if lang != "" && item.Language != lang {
			continue
		}
		if country != "" && item.Country != country {
			continue
		}
		if platform != "" && !matchesPlatform(item.Platforms, platform) {
			continue
		}
		if filters.RatingMin > 0 && item.Rating < filters.RatingMin-ratingTolerance {
			continue
		}
		if filters.Year > 0 && !withinYear(item.Year, filters.Year) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// matchesPlatform checks the wanted platform against each item platform in
// both directions, so "netflix" matches "Netflix Standard with Ads" and
// "netflix basic" matches "Netflix".
func matchesPlatform(platforms []string, wanted string) bool {
	for _, platform := range platforms {
		name := strings.ToLower(strings.TrimSpace(platform))
		if name == "" {
			continue
		}
		if strings.Contains(name, wanted) || strings.Contains(wanted, name) {
			return true
		}
	}
	return false
}

func withinYear(itemYear, wantedYear int) bool {
	diff := itemYear - wantedYear
	if diff < 0 {
		diff = -diff
	}
	return itemYear > 0 && diff <= yearTolerance
}
