package domain

import (
	"strconv"
	"time"
)

type ContentKind string

const (
	ContentKindMovie ContentKind = "movie"
	ContentKindTV    ContentKind = "tv"
)

// NormalizeContentKind maps free-form type strings to a known kind.
// Anything unrecognized is returned empty so callers can treat it as
// "no constraint".
func NormalizeContentKind(raw string) ContentKind {
	switch ContentKind(raw) {
	case ContentKindMovie:
		return ContentKindMovie
	case ContentKindTV:
		return ContentKindTV
	default:
		return ""
	}
}

// Content is the normalized movie/show record used throughout search,
// trending and detail responses. Cast, trailer and platforms are only
// populated on detail fetches.
type Content struct {
	ID             int         `json:"id"`
	Title          string      `json:"title"`
	Kind           ContentKind `json:"type"`
	Description    string      `json:"description"`
	Year           int         `json:"year"`
	PosterURL      string      `json:"posterUrl"`
	BackdropURL    string      `json:"backdropUrl,omitempty"`
	Rating         float64     `json:"rating"`
	DisplayRating  float64     `json:"displayRating"`
	Genre          string      `json:"genre"`
	Platforms      []string    `json:"platforms"`
	Cast           []string    `json:"cast,omitempty"`
	RuntimeMinutes int         `json:"runtimeMinutes"`
	Country        string      `json:"country"`
	Language       string      `json:"language"`
	Status         string      `json:"status"`
	TrailerURL     string      `json:"trailerUrl,omitempty"`
}

// Key returns the composite identity used for deduplication: a TMDB id is
// only unique within one media type.
func (c Content) Key() string {
	return strconv.Itoa(c.ID) + ":" + string(c.Kind)
}

// SearchFilters is the request-scoped set of optional constraints. A zero
// value for any field means "no constraint".
type SearchFilters struct {
	Type      string  `json:"type,omitempty"`
	Genre     string  `json:"genre,omitempty"`
	Language  string  `json:"language,omitempty"`
	Country   string  `json:"country,omitempty"`
	Platform  string  `json:"platform,omitempty"`
	Year      int     `json:"year,omitempty"`
	RatingMin float64 `json:"ratingMin,omitempty"`
}

func (f SearchFilters) Active() bool {
	return f.Type != "" ||
		f.Genre != "" ||
		f.Language != "" ||
		f.Country != "" ||
		f.Platform != "" ||
		f.Year > 0 ||
		f.RatingMin > 0
}

type SearchRequest struct {
	Query   string
	Filters SearchFilters
	NoCache bool
}

// UpstreamStatus reports the outcome of one upstream page fetch. Failed
// fetches are reported here but never fail the overall search.
type UpstreamStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type SearchResponse struct {
	Query      string           `json:"query"`
	Items      []Content        `json:"items"`
	Upstreams  []UpstreamStatus `json:"upstreams"`
	TotalItems int              `json:"totalItems"`
	ElapsedMS  int64            `json:"elapsedMs"`
	Message    string           `json:"message"`
}

// UpstreamDiagnostics is a point-in-time health snapshot for one upstream,
// exposed on the health endpoint.
type UpstreamDiagnostics struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs"`
	TotalRequests       int64      `json:"totalRequests"`
	TotalFailures       int64      `json:"totalFailures"`
}

type Recommendation struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

type Suggestion struct {
	Title string `json:"title"`
}

// CardSettings mirrors the admin widget toggles: which fields show up in
// the search form and on result cards.
type CardSettings struct {
	SearchFields map[string]bool `json:"searchFields"`
	CardFields   map[string]bool `json:"cardFields"`
}

func DefaultCardSettings() CardSettings {
	return CardSettings{
		SearchFields: map[string]bool{
			"platforms": true,
			"genres":    true,
			"actors":    true,
			"language":  true,
			"country":   true,
		},
		CardFields: map[string]bool{
			"title":    true,
			"rating":   true,
			"summary":  true,
			"platform": true,
			"actors":   false,
			"year":     true,
		},
	}
}
