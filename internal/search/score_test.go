package search

import (
	"testing"

	"bingeworthy/searchservice/internal/domain"
)

func TestRelevanceScoreLadder(t *testing.T) {
	cases := []struct {
		name  string
		query string
		item  domain.Content
		want  float64
	}{
		{
			name:  "exact title match",
			query: "inception",
			item:  domain.Content{Title: "Inception"},
			// +10 exact, +1 token pair
			want: 11,
		},
		{
			name:  "substring title match",
			query: "incep",
			item:  domain.Content{Title: "Inception"},
			// +5 substring, +1 token pair
			want: 6,
		},
		{
			name:  "exact match suppresses substring bonus",
			query: "heat",
			item:  domain.Content{Title: "Heat"},
			want: 11,
		},
		{
			name:  "description match",
			query: "heist",
			item:  domain.Content{Title: "Inception", Description: "A heist inside dreams."},
			want: 3,
		},
		{
			name:  "genre match",
			query: "horror",
			item:  domain.Content{Title: "Alien", Genre: "Horror, Science Fiction"},
			want: 2,
		},
		{
			name:  "short query tokens are skipped",
			query: "it",
			item:  domain.Content{Title: "It Follows"},
			// +5 substring only; "it" is too short for token pairs
			want: 5,
		},
		{
			name:  "token pairs accumulate",
			query: "star wars",
			item:  domain.Content{Title: "Star Wars: The Last Jedi"},
			// +5 substring, then "star" pairs with "star" and "wars"
			// pairs with "wars:": +2
			want: 7,
		},
		{
			name:  "no match",
			query: "zebra",
			item:  domain.Content{Title: "Heat", Description: "Cops and robbers.", Genre: "Crime"},
			want:  0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := relevanceScore(tc.query, tc.item); got != tc.want {
				t.Errorf("relevanceScore(%q, %q) = %v, want %v", tc.query, tc.item.Title, got, tc.want)
			}
		})
	}
}

func TestRankingKeyWeights(t *testing.T) {
	item := domain.Content{Title: "Inception", Rating: 8.0, DisplayRating: 9.0}
	// relevance 11 → 3*11 + 8 + 0.5*9 = 45.5
	if got := rankingKey("inception", item); got != 45.5 {
		t.Errorf("rankingKey = %v, want 45.5", got)
	}
}

func TestSortByRelevanceDescendingAndStable(t *testing.T) {
	items := []domain.Content{
		{ID: 1, Kind: domain.ContentKindMovie, Title: "Unrelated", Rating: 9.9},
		{ID: 2, Kind: domain.ContentKindMovie, Title: "Inception", Rating: 8.0},
		{ID: 3, Kind: domain.ContentKindMovie, Title: "Tied A", Rating: 5.0},
		{ID: 4, Kind: domain.ContentKindMovie, Title: "Tied B", Rating: 5.0},
	}

	sortByRelevance(items, "inception")

	if items[0].ID != 2 {
		t.Errorf("first item = %d, want the exact title match", items[0].ID)
	}
	// The tied items keep their original relative order.
	var tiedOrder []int
	for _, item := range items {
		if item.ID == 3 || item.ID == 4 {
			tiedOrder = append(tiedOrder, item.ID)
		}
	}
	if len(tiedOrder) != 2 || tiedOrder[0] != 3 || tiedOrder[1] != 4 {
		t.Errorf("tied order = %v, want [3 4]", tiedOrder)
	}
}
