package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bingeworthy/searchservice/internal/domain"
	"bingeworthy/searchservice/internal/recommend"
	"bingeworthy/searchservice/internal/search"
	"bingeworthy/searchservice/internal/settings"
)

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	Trending(ctx context.Context) ([]domain.Content, error)
	Suggest(ctx context.Context, query string) ([]domain.Suggestion, error)
	Detail(ctx context.Context, kind domain.ContentKind, id int) (domain.Content, error)
	UpstreamDiagnostics() []domain.UpstreamDiagnostics
}

type RecommendService interface {
	Recommend(ctx context.Context, prompt string, maxCount int) ([]domain.Recommendation, error)
	SuggestTitles(ctx context.Context, prompt string, limit int) []domain.Suggestion
}

type Server struct {
	search         SearchService
	recommender    RecommendService
	settings       settings.Store
	adminToken     string
	rateLimitRPS   float64
	rateLimitBurst int
	logger         *slog.Logger
}

// searchCacheControl tells HTTP caches a search response is good for
// 30 minutes and may be served stale for another hour while revalidating;
// it mirrors the server-side cache TTLs.
const searchCacheControl = "public, max-age=1800, stale-while-revalidate=3600"

const maxQueryLength = 100

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithRecommender(recommender RecommendService) ServerOption {
	return func(s *Server) {
		s.recommender = recommender
	}
}

func WithSettings(store settings.Store, adminToken string) ServerOption {
	return func(s *Server) {
		s.settings = store
		s.adminToken = strings.TrimSpace(adminToken)
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateLimitRPS = rps
		}
		if burst > 0 {
			s.rateLimitBurst = burst
		}
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search:         searchService,
		logger:         slog.Default(),
		rateLimitRPS:   50,
		rateLimitBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/recommendations", s.handleRecommendations)
	mux.HandleFunc("/trending", s.handleTrending)
	mux.HandleFunc("/suggest", s.handleSuggest)
	mux.HandleFunc("/content/", s.handleContentDetail)
	mux.HandleFunc("/admin/settings", s.handleAdminSettings)
	mux.HandleFunc("/poster", s.handlePosterProxy)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "bingeworthy-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if s.search != nil {
		if diagnostics := s.search.UpstreamDiagnostics(); len(diagnostics) > 0 {
			payload["upstreams"] = diagnostics
		}
	}
	writeSuccess(w, http.StatusOK, payload, "")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeFailure(w, http.StatusInternalServerError, "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeFailure(w, http.StatusBadRequest, "query is required")
		return
	}
	if len([]rune(query)) > maxQueryLength {
		writeFailure(w, http.StatusBadRequest, "query too long (max 100 characters)")
		return
	}

	request := domain.SearchRequest{
		Query:   query,
		Filters: parseSearchFilters(r),
		NoCache: parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache")),
	}

	response, err := s.search.Search(r.Context(), request)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, search.ErrInvalidQuery):
			writeFailure(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, search.ErrCatalogDisabled):
			writeFailure(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeFailure(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	w.Header().Set("Cache-Control", searchCacheControl)
	writeSuccess(w, http.StatusOK, response, response.Message)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/recommendations" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.recommender == nil {
		writeFailure(w, http.StatusInternalServerError, "recommendation service is not configured")
		return
	}

	var payload struct {
		Query              string `json:"query"`
		MaxRecommendations int    `json:"maxRecommendations"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	recommendations, err := s.recommender.Recommend(r.Context(), payload.Query, payload.MaxRecommendations)
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidPrompt) {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("recommendation request failed",
			slog.String("query", truncate(payload.Query, 80)),
			slog.String("error", err.Error()),
		)
		writeFailure(w, http.StatusInternalServerError, "recommendations failed")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"recommendations": recommendations,
		"query":           payload.Query,
	}, fmt.Sprintf("Found %d recommendations", len(recommendations)))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/trending" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeFailure(w, http.StatusInternalServerError, "search service is not configured")
		return
	}

	items, err := s.search.Trending(r.Context())
	if err != nil {
		s.logger.Warn("trending request failed", slog.String("error", err.Error()))
		if errors.Is(err, search.ErrCatalogDisabled) {
			writeFailure(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeFailure(w, http.StatusBadGateway, "trending is temporarily unavailable")
		return
	}

	w.Header().Set("Cache-Control", searchCacheControl)
	writeSuccess(w, http.StatusOK, map[string]any{"items": items}, "")
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/suggest" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < 2 {
		writeSuccess(w, http.StatusOK, map[string]any{"items": []domain.Suggestion{}}, "")
		return
	}

	var items []domain.Suggestion
	if s.search != nil {
		suggestions, err := s.search.Suggest(r.Context(), query)
		if err != nil {
			s.logger.Warn("suggest lookup failed",
				slog.String("query", truncate(query, 60)),
				slog.String("error", err.Error()),
			)
		} else {
			items = suggestions
		}
	}
	if len(items) == 0 && s.recommender != nil {
		items = s.recommender.SuggestTitles(r.Context(), query, 8)
	}
	if items == nil {
		items = []domain.Suggestion{}
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": items}, "")
}

func (s *Server) handleContentDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeFailure(w, http.StatusInternalServerError, "search service is not configured")
		return
	}

	// Path shape: /content/{kind}/{id}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/content/"), "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	kind := domain.NormalizeContentKind(strings.ToLower(strings.TrimSpace(parts[0])))
	if kind == "" {
		writeFailure(w, http.StatusBadRequest, "content type must be movie or tv")
		return
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "invalid content id")
		return
	}

	item, err := s.search.Detail(r.Context(), kind, id)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrUnknownContent):
			writeFailure(w, http.StatusNotFound, "content not found")
		case errors.Is(err, search.ErrUnknownKind):
			writeFailure(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, search.ErrCatalogDisabled):
			writeFailure(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Warn("content detail failed",
				slog.String("kind", string(kind)),
				slog.Int("id", id),
				slog.String("error", err.Error()),
			)
			writeFailure(w, http.StatusBadGateway, "content detail is temporarily unavailable")
		}
		return
	}

	w.Header().Set("Cache-Control", searchCacheControl)
	writeSuccess(w, http.StatusOK, item, "")
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/admin/settings" {
		http.NotFound(w, r)
		return
	}
	if s.settings == nil {
		writeFailure(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	if !s.authorizeAdmin(r) {
		writeFailure(w, http.StatusUnauthorized, "missing or invalid admin token")
		return
	}

	switch r.Method {
	case http.MethodGet:
		current, err := s.settings.Get(r.Context())
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeSuccess(w, http.StatusOK, current, "")
	case http.MethodPut:
		var payload domain.CardSettings
		if err := decodeJSONBody(r, &payload); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		if payload.SearchFields == nil && payload.CardFields == nil {
			writeFailure(w, http.StatusBadRequest, "settings body is required")
			return
		}
		if err := s.settings.Put(r.Context(), payload); err != nil {
			writeFailure(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
		writeSuccess(w, http.StatusOK, payload, "Settings updated")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// authorizeAdmin checks the static bearer token when one is configured.
// With no token configured the admin endpoints are open, which suits local
// and single-tenant deployments.
func (s *Server) authorizeAdmin(r *http.Request) bool {
	if s.adminToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return strings.TrimSpace(token) == s.adminToken
}

func parseSearchFilters(r *http.Request) domain.SearchFilters {
	q := r.URL.Query()
	var filters domain.SearchFilters

	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v == "movie" || v == "tv" {
		filters.Type = v
	}
	filters.Genre = strings.TrimSpace(q.Get("genre"))
	filters.Language = strings.TrimSpace(q.Get("language"))
	filters.Country = strings.TrimSpace(q.Get("country"))
	filters.Platform = strings.TrimSpace(q.Get("platform"))

	// Out-of-range values are ignored, not rejected: a bad filter widens
	// the search instead of failing it.
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1900 && n <= time.Now().Year()+5 {
			filters.Year = n
		}
	}
	ratingRaw := strings.TrimSpace(q.Get("ratingMin"))
	if ratingRaw == "" {
		ratingRaw = strings.TrimSpace(q.Get("rating_min"))
	}
	if ratingRaw != "" {
		if f, err := strconv.ParseFloat(ratingRaw, 64); err == nil && f >= 0 && f <= 10 {
			filters.RatingMin = f
		}
	}
	return filters
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
