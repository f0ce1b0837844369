package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bingeworthy/searchservice/internal/domain"
	"bingeworthy/searchservice/internal/recommend"
	"bingeworthy/searchservice/internal/search"
	"bingeworthy/searchservice/internal/settings"
)

type fakeSearchService struct {
	searchCalls int
	lastRequest domain.SearchRequest
	response    domain.SearchResponse
	searchErr   error

	trendingItems []domain.Content
	trendingErr   error

	suggestions []domain.Suggestion
	suggestErr  error

	detail    domain.Content
	detailErr error
}

func (f *fakeSearchService) Search(_ context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	f.searchCalls++
	f.lastRequest = request
	if f.searchErr != nil {
		return domain.SearchResponse{}, f.searchErr
	}
	return f.response, nil
}

func (f *fakeSearchService) Trending(_ context.Context) ([]domain.Content, error) {
	return f.trendingItems, f.trendingErr
}

func (f *fakeSearchService) Suggest(_ context.Context, _ string) ([]domain.Suggestion, error) {
	return f.suggestions, f.suggestErr
}

func (f *fakeSearchService) Detail(_ context.Context, _ domain.ContentKind, _ int) (domain.Content, error) {
	return f.detail, f.detailErr
}

func (f *fakeSearchService) UpstreamDiagnostics() []domain.UpstreamDiagnostics {
	return nil
}

type fakeRecommender struct {
	picks []domain.Recommendation
	err   error
}

func (f *fakeRecommender) Recommend(_ context.Context, _ string, maxCount int) ([]domain.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if maxCount > 0 && len(f.picks) > maxCount {
		return f.picks[:maxCount], nil
	}
	return f.picks, nil
}

func (f *fakeRecommender) SuggestTitles(_ context.Context, _ string, limit int) []domain.Suggestion {
	if len(f.picks) == 0 {
		return nil
	}
	suggestions := make([]domain.Suggestion, 0, limit)
	for _, pick := range f.picks {
		suggestions = append(suggestions, domain.Suggestion{Title: pick.Title})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestSearchRejectsOverlongQuery(t *testing.T) {
	fake := &fakeSearchService{}
	handler := NewServer(fake).Handler()

	long := strings.Repeat("a", 101)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q="+long, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body.Success {
		t.Error("success must be false on a rejected query")
	}
	if body.Error == "" {
		t.Error("error message must be present")
	}
	if fake.searchCalls != 0 {
		t.Errorf("search service calls = %d, the handler must reject before dispatch", fake.searchCalls)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	handler := NewServer(&fakeSearchService{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchSuccessWithPartialUpstreams(t *testing.T) {
	fake := &fakeSearchService{
		response: domain.SearchResponse{
			Query: "dune",
			Items: []domain.Content{{ID: 438631, Title: "Dune", Kind: domain.ContentKindMovie}},
			Upstreams: []domain.UpstreamStatus{
				{Name: "tmdb-movie-p1", OK: true, Count: 1},
				{Name: "tmdb-movie-p2", OK: false, Error: "tmdb HTTP 500"},
				{Name: "tmdb-tv-p1", OK: false, Error: "tmdb HTTP 500"},
				{Name: "tmdb-tv-p2", OK: false, Error: "tmdb HTTP 500"},
			},
			TotalItems: 1,
			Message:    "Found 1 results (some sources were unavailable)",
		},
	}
	handler := NewServer(fake).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=dune", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with failed upstreams", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if !body.Success {
		t.Error("success must be true when any upstream answered")
	}
	if got := rec.Header().Get("Cache-Control"); got != searchCacheControl {
		t.Errorf("Cache-Control = %q, want %q", got, searchCacheControl)
	}
}

func TestSearchErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid query", search.ErrInvalidQuery, http.StatusBadRequest},
		{"catalog disabled", search.ErrCatalogDisabled, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewServer(&fakeSearchService{searchErr: tc.err}).Handler()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=dune", nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if rec.Header().Get("Cache-Control") == searchCacheControl {
				t.Error("error responses must not advertise cacheability")
			}
		})
	}
}

func TestParseSearchFilters(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  domain.SearchFilters
	}{
		{
			"all valid",
			"type=movie&genre=Horror&language=en&country=us&platform=Netflix&year=2021&ratingMin=7.5",
			domain.SearchFilters{Type: "movie", Genre: "Horror", Language: "en", Country: "us", Platform: "Netflix", Year: 2021, RatingMin: 7.5},
		},
		{"bad type ignored", "type=anime", domain.SearchFilters{}},
		{"year below range ignored", "year=1800", domain.SearchFilters{}},
		{"year not a number ignored", "year=soon", domain.SearchFilters{}},
		{"rating above range ignored", "ratingMin=11", domain.SearchFilters{}},
		{"rating negative ignored", "ratingMin=-1", domain.SearchFilters{}},
		{"snake case rating accepted", "rating_min=6", domain.SearchFilters{RatingMin: 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/search?q=x&"+tc.query, nil)
			if got := parseSearchFilters(r); got != tc.want {
				t.Errorf("filters = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRecommendationsRejectsShortPrompt(t *testing.T) {
	handler := NewServer(&fakeSearchService{},
		WithRecommender(&fakeRecommender{err: recommend.ErrInvalidPrompt}),
	).Handler()

	body := bytes.NewBufferString(`{"query":"ab"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recommendations", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decodeEnvelope(t, rec).Success {
		t.Error("success must be false")
	}
}

func TestRecommendationsSuccess(t *testing.T) {
	handler := NewServer(&fakeSearchService{},
		WithRecommender(&fakeRecommender{picks: []domain.Recommendation{
			{ID: "rec-horror-1", Title: "The Shining", Category: "horror", Confidence: 0.95},
		}}),
	).Handler()

	payload := bytes.NewBufferString(`{"query":"top 1 best horror movie"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recommendations", payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if !body.Success {
		t.Error("success must be true")
	}
	if body.Message != "Found 1 recommendations" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestRecommendationsRejectsGet(t *testing.T) {
	handler := NewServer(&fakeSearchService{}, WithRecommender(&fakeRecommender{})).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recommendations", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestSuggestShortQueryReturnsEmptyList(t *testing.T) {
	fake := &fakeSearchService{suggestions: []domain.Suggestion{{Title: "Dune"}}}
	handler := NewServer(fake).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/suggest?q=d", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Items []domain.Suggestion `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data.Items) != 0 {
		t.Errorf("items = %v, want an empty list for a one character query", body.Data.Items)
	}
}

func TestSuggestFallsBackToCuratedTitles(t *testing.T) {
	fake := &fakeSearchService{suggestErr: errors.New("tmdb HTTP 500")}
	handler := NewServer(fake,
		WithRecommender(&fakeRecommender{picks: []domain.Recommendation{
			{ID: "rec-horror-1", Title: "The Shining", Category: "horror", Confidence: 0.95},
		}}),
	).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/suggest?q=scary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data struct {
			Items []domain.Suggestion `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data.Items) == 0 || body.Data.Items[0].Title != "The Shining" {
		t.Errorf("items = %v, want the curated fallback titles", body.Data.Items)
	}
}

func TestContentDetailErrors(t *testing.T) {
	cases := []struct {
		name       string
		path       string
		detailErr  error
		wantStatus int
	}{
		{"not found", "/content/movie/99999999", search.ErrUnknownContent, http.StatusNotFound},
		{"bad kind", "/content/anime/42", nil, http.StatusBadRequest},
		{"bad id", "/content/movie/zero", nil, http.StatusBadRequest},
		{"missing id", "/content/movie", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewServer(&fakeSearchService{detailErr: tc.detailErr}).Handler()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestContentDetailSuccess(t *testing.T) {
	fake := &fakeSearchService{detail: domain.Content{
		ID:    438631,
		Title: "Dune",
		Kind:  domain.ContentKindMovie,
	}}
	handler := NewServer(fake).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/content/movie/438631", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !decodeEnvelope(t, rec).Success {
		t.Error("success must be true")
	}
}

func TestAdminSettingsRequiresToken(t *testing.T) {
	handler := NewServer(&fakeSearchService{},
		WithSettings(settings.NewMemoryStore(), "sekrit"),
	).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d, want 401", rec.Code)
	}
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	handler := NewServer(&fakeSearchService{},
		WithSettings(settings.NewMemoryStore(), "sekrit"),
	).Handler()

	updated := domain.DefaultCardSettings()
	updated.CardFields["actors"] = true
	payload, _ := json.Marshal(updated)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/settings", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer sekrit")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var body struct {
		Data domain.CardSettings `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Data.CardFields["actors"] {
		t.Error("saved settings must survive the round trip")
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewServer(&fakeSearchService{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !decodeEnvelope(t, rec).Success {
		t.Error("health must report success")
	}
}

func TestTrendingEndpoint(t *testing.T) {
	fake := &fakeSearchService{trendingItems: []domain.Content{
		{ID: 1, Title: "Severance", Kind: domain.ContentKindTV, Rating: 8.7},
	}}
	handler := NewServer(fake).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trending", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != searchCacheControl {
		t.Errorf("Cache-Control = %q, want %q", got, searchCacheControl)
	}
}

func TestPosterProxyValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"missing url", ""},
		{"bad scheme", "ftp://example.com/poster.jpg"},
		{"localhost", "http://localhost:6379/poster.jpg"},
		{"loopback ip", "http://127.0.0.1/poster.jpg"},
		{"private ip", "http://10.0.0.5/poster.jpg"},
		{"service name", "http://redis/poster.jpg"},
		{"internal suffix", "http://cache.internal/poster.jpg"},
	}
	handler := NewServer(&fakeSearchService{}).Handler()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/poster"
			if tc.url != "" {
				target += "?url=" + url.QueryEscape(tc.url)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestValidatePosterURLAllowsPublicHosts(t *testing.T) {
	for _, raw := range []string{
		"https://image.tmdb.org/t/p/w500/abc.jpg",
		"http://img.omdbapi.com/poster.jpg",
	} {
		target, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if err := validatePosterURL(target); err != nil {
			t.Errorf("validatePosterURL(%q) = %v, want nil", raw, err)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := NewServer(&fakeSearchService{}, WithRateLimit(1, 1)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trending", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trending", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}

	// Health stays reachable even when the limiter is exhausted.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}
