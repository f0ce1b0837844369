package search

import (
	"sort"
	"strings"

	"bingeworthy/searchservice/internal/domain"
)

// relevanceScore rates how well one item matches the query text.
// The ladder, from strongest to weakest signal:
//
//	+10  title equals the query (case-insensitive)
//	 +5  title contains the query (exact match suppresses this)
//	 +3  description contains the query
//	 +2  genre contains the query
//	 +1  per query-token/title-token pair where one contains the other;
//	     query tokens shorter than three characters are skipped
func relevanceScore(query string, item domain.Content) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}
	title := strings.ToLower(item.Title)

	score := 0.0
	if title == query {
		score += 10
	} else if strings.Contains(title, query) {
		score += 5
	}
	if strings.Contains(strings.ToLower(item.Description), query) {
		score += 3
	}
	if strings.Contains(strings.ToLower(item.Genre), query) {
		score += 2
	}

	titleTokens := strings.Fields(title)
	for _, queryToken := range strings.Fields(query) {
		if len(queryToken) <= 2 {
			continue
		}
		for _, titleToken := range titleTokens {
			if strings.Contains(titleToken, queryToken) || strings.Contains(queryToken, titleToken) {
				score++
			}
		}
	}
	return score
}

// rankingKey combines text relevance with both rating signals. Relevance
// dominates; ratings break ties between equally relevant titles.
func rankingKey(query string, item domain.Content) float64 {
	return 3*relevanceScore(query, item) + item.Rating + 0.5*item.DisplayRating
}

// sortByRelevance orders items by descending ranking key. The sort is
// stable, so equal keys keep their catalog order.
func sortByRelevance(items []domain.Content, query string) {
	keys := make(map[string]float64, len(items))
	for _, item := range items {
		keys[item.Key()] = rankingKey(query, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return keys[items[i].Key()] > keys[items[j].Key()]
	})
}
