package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"bingeworthy/searchservice/internal/catalog/omdb"
	"bingeworthy/searchservice/internal/catalog/tmdb"
	"bingeworthy/searchservice/internal/domain"
)

var (
	ErrInvalidQuery    = errors.New("query must be between 1 and 100 characters")
	ErrCatalogDisabled = errors.New("catalog upstream is not configured")
	ErrUnknownContent  = errors.New("unknown content")
	ErrUnknownKind     = errors.New("unknown content type")
)

const (
	maxQueryLength = 100
	maxResults     = 50
	maxSuggestions = 8

	// Every search fans out to four catalog pages at once: two movie
	// pages and two TV pages.
	maxConcurrentFetches = 4

	// Secondary ratings are fetched for the head of the ranked list only;
	// each lookup is one upstream round trip.
	maxRatingsLookups = 10
)

// Catalog is the slice of the TMDB client the search service depends on.
type Catalog interface {
	Enabled() bool
	ImageURL(path string) string
	SearchMovies(ctx context.Context, query string, page int) ([]tmdb.Record, error)
	SearchShows(ctx context.Context, query string, page int) ([]tmdb.Record, error)
	SearchMulti(ctx context.Context, query string) ([]tmdb.Record, error)
	Trending(ctx context.Context) ([]tmdb.Record, error)
	Details(ctx context.Context, kind string, id int) (tmdb.Detail, error)
	WatchProviders(ctx context.Context, kind string, id int, region string) (tmdb.WatchRegion, error)
}

// RatingsSource is the slice of the OMDb client used for secondary ratings.
type RatingsSource interface {
	Enabled() bool
	Lookup(ctx context.Context, title string, year int) (omdb.Ratings, bool, error)
}

type Service struct {
	catalog Catalog
	ratings RatingsSource
	region  string
	timeout time.Duration
	log     *slog.Logger

	cacheDisabled bool
	cacheMu       sync.Mutex
	cache         map[string]*cachedSearchResponse
	popular       map[string]*popularQuery
	warmerCfg     searchWarmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend

	healthMu sync.Mutex
	health   map[string]*upstreamHealth

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	trendingMu sync.RWMutex
	trending   []domain.Content
	trendingAt time.Time
}

type ServiceOption func(*Service)

func WithRatings(source RatingsSource) ServiceOption {
	return func(s *Service) {
		s.ratings = source
	}
}

func WithRegion(region string) ServiceOption {
	return func(s *Service) {
		region = strings.ToUpper(strings.TrimSpace(region))
		if region != "" {
			s.region = region
		}
	}
}

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl, staleTTL time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 2
		}
		if staleTTL > ttl {
			s.warmerCfg.staleTTL = staleTTL
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(catalog Catalog, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	svc := &Service{
		catalog:   catalog,
		region:    "US",
		timeout:   timeout,
		log:       slog.Default(),
		cache:     make(map[string]*cachedSearchResponse),
		popular:   make(map[string]*popularQuery),
		warmerCfg: defaultSearchWarmerConfig(),
		health:    make(map[string]*upstreamHealth),
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

// fetchSlot is one of the four catalog pages a search fans out to. Slot
// order is fixed so the concatenated result list is deterministic no matter
// which fetch finishes first.
type fetchSlot struct {
	name string
	kind domain.ContentKind
	page int
}

var searchSlots = [4]fetchSlot{
	{name: "tmdb-movie-p1", kind: domain.ContentKindMovie, page: 1},
	{name: "tmdb-movie-p2", kind: domain.ContentKindMovie, page: 2},
	{name: "tmdb-tv-p1", kind: domain.ContentKindTV, page: 1},
	{name: "tmdb-tv-p2", kind: domain.ContentKindTV, page: 2},
}

func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	query := strings.TrimSpace(request.Query)
	if query == "" || utf8.RuneCountInString(query) > maxQueryLength {
		return domain.SearchResponse{}, ErrInvalidQuery
	}
	if s.catalog == nil || !s.catalog.Enabled() {
		return domain.SearchResponse{}, ErrCatalogDisabled
	}
	request.Query = query

	if s.cacheDisabled || request.NoCache {
		return s.executeSearch(ctx, request), nil
	}

	startedAt := time.Now()
	cacheKey := buildSearchCacheKey(request)

	if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
		s.markPopular(cacheKey, request, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(cacheKey, request)
		}
		cached.ElapsedMS = time.Since(startedAt).Milliseconds()
		return cached, nil
	}

	response := s.executeSearch(ctx, request)
	s.cacheStore(cacheKey, response, time.Now())
	s.markPopular(cacheKey, request, time.Now())
	return response, nil
}

// searchNoCache executes a search for the warmer and stores the result.
// A response with every upstream down is not worth caching over a stale
// but complete one; reports whether the cache was updated.
func (s *Service) searchNoCache(ctx context.Context, request domain.SearchRequest) bool {
	response := s.executeSearch(ctx, request)
	if failedUpstreams(response.Upstreams) == len(response.Upstreams) {
		return false
	}
	s.cacheStore(buildSearchCacheKey(request), response, time.Now())
	return true
}

func (s *Service) refreshCacheAsync(cacheKey string, request domain.SearchRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		response := s.executeSearch(ctx, request)
		if failedUpstreams(response.Upstreams) == len(response.Upstreams) {
			s.cacheClearRefreshing(cacheKey)
			return
		}
		s.cacheStore(cacheKey, response, time.Now())
	}()
}

// executeSearch runs the four-page fan-out and the normalize, dedupe,
// filter, rank pipeline. Upstream failures are absorbed into per-fetch
// statuses; the search itself always produces a response.
func (s *Service) executeSearch(ctx context.Context, request domain.SearchRequest) domain.SearchResponse {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	statuses := make([]domain.UpstreamStatus, len(searchSlots))
	pages := make([][]tmdb.Record, len(searchSlots))

	var mu sync.Mutex
	sem := semaphore.NewWeighted(maxConcurrentFetches)
	var wg sync.WaitGroup

	for i, slot := range searchSlots {
		wg.Add(1)
		go func(index int, slot fetchSlot) {
			defer wg.Done()

			if err := sem.Acquire(runCtx, 1); err != nil {
				mu.Lock()
				statuses[index] = domain.UpstreamStatus{Name: slot.name, OK: false, Error: "context cancelled"}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			upstreamKey := "tmdb-" + string(slot.kind)

			now := time.Now()
			if blocked, until, lastErr := s.isUpstreamBlocked(upstreamKey, now); blocked {
				mu.Lock()
				statuses[index] = domain.UpstreamStatus{
					Name:  slot.name,
					OK:    false,
					Error: fmt.Sprintf("upstream temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr),
				}
				mu.Unlock()
				return
			}

			if err := s.waitUpstreamRateLimit(runCtx, upstreamKey); err != nil {
				mu.Lock()
				statuses[index] = domain.UpstreamStatus{Name: slot.name, OK: false, Error: "rate limit wait cancelled"}
				mu.Unlock()
				return
			}

			fetchStartedAt := time.Now()
			var records []tmdb.Record
			var fetchErr error
			if slot.kind == domain.ContentKindMovie {
				records, fetchErr = s.catalog.SearchMovies(runCtx, request.Query, slot.page)
			} else {
				records, fetchErr = s.catalog.SearchShows(runCtx, request.Query, slot.page)
			}
			s.recordUpstreamResult(upstreamKey, fetchErr, time.Since(fetchStartedAt), time.Now())

			status := domain.UpstreamStatus{Name: slot.name, OK: fetchErr == nil, Count: len(records)}
			if fetchErr != nil {
				status.Error = fetchErr.Error()
				s.log.Warn("catalog page fetch failed",
					slog.String("upstream", slot.name),
					slog.String("query", request.Query),
					slog.String("error", fetchErr.Error()),
				)
			}

			mu.Lock()
			statuses[index] = status
			pages[index] = records
			mu.Unlock()
		}(i, slot)
	}
	wg.Wait()

	items := make([]domain.Content, 0, 80)
	seen := make(map[string]struct{}, 80)
	for i, page := range pages {
		kind := searchSlots[i].kind
		for _, record := range page {
			item := s.normalizeRecord(record, kind)
			if _, exists := seen[item.Key()]; exists {
				continue
			}
			seen[item.Key()] = struct{}{}
			items = append(items, item)
		}
	}

	items = applyFilters(items, request.Filters)
	sortByRelevance(items, request.Query)
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	if s.enrichRatings(runCtx, items) {
		sortByRelevance(items, request.Query)
	}

	failed := failedUpstreams(statuses)
	response := domain.SearchResponse{
		Query:      request.Query,
		Items:      items,
		Upstreams:  statuses,
		TotalItems: len(items),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
		Message:    searchMessage(len(items), failed, len(statuses)),
	}

	s.log.Info("search completed",
		slog.String("query", request.Query),
		slog.Int("items", len(items)),
		slog.Int("failedUpstreams", failed),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response
}

// enrichRatings blends review-site scores into the head of the ranked list.
// Best effort: a missing key, an unknown title or a failed lookup leaves the
// catalog rating in place. Reports whether any item changed.
func (s *Service) enrichRatings(ctx context.Context, items []domain.Content) bool {
	if s.ratings == nil || !s.ratings.Enabled() || len(items) == 0 {
		return false
	}
	limit := len(items)
	if limit > maxRatingsLookups {
		limit = maxRatingsLookups
	}

	changed := false
	for i := 0; i < limit; i++ {
		ratings, found, err := s.ratings.Lookup(ctx, items[i].Title, items[i].Year)
		if err != nil {
			s.log.Debug("ratings lookup failed",
				slog.String("title", items[i].Title),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !found {
			continue
		}
		if aggregate, ok := omdb.Aggregate(items[i].Rating, ratings); ok {
			items[i].DisplayRating = round1(aggregate / 10)
			changed = true
		}
	}
	return changed
}

func searchMessage(count, failed, total int) string {
	switch {
	case count == 0 && failed == total:
		return "Search is temporarily unavailable, please try again"
	case count == 0:
		return "No results found"
	case failed > 0:
		return fmt.Sprintf("Found %d results (some sources were unavailable)", count)
	default:
		return fmt.Sprintf("Found %d results", count)
	}
}

func failedUpstreams(statuses []domain.UpstreamStatus) int {
	failed := 0
	for _, status := range statuses {
		if !status.OK {
			failed++
		}
	}
	return failed
}

// Trending returns the cached weekly trending list, refreshing it from the
// catalog when the cache is older than the warm interval.
func (s *Service) Trending(ctx context.Context) ([]domain.Content, error) {
	s.trendingMu.RLock()
	cached := s.trending
	cachedAt := s.trendingAt
	s.trendingMu.RUnlock()

	if len(cached) > 0 && time.Since(cachedAt) < s.warmerCfg.cacheTTL {
		return cached, nil
	}
	if err := s.RefreshTrending(ctx); err != nil {
		if len(cached) > 0 {
			return cached, nil
		}
		return nil, err
	}

	s.trendingMu.RLock()
	defer s.trendingMu.RUnlock()
	return s.trending, nil
}

// RefreshTrending refetches the weekly trending list. Called from the cron
// schedule and from cold Trending reads; transient upstream errors are
// retried with backoff.
func (s *Service) RefreshTrending(ctx context.Context) error {
	if s.catalog == nil || !s.catalog.Enabled() {
		return ErrCatalogDisabled
	}

	var records []tmdb.Record
	err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() error {
		var fetchErr error
		records, fetchErr = s.catalog.Trending(ctx)
		return fetchErr
	})
	if err != nil {
		s.log.Warn("trending refresh failed", slog.String("error", err.Error()))
		return err
	}

	items := make([]domain.Content, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		kind := domain.NormalizeContentKind(record.MediaType)
		if kind == "" {
			continue
		}
		item := s.normalizeRecord(record, kind)
		if _, exists := seen[item.Key()]; exists {
			continue
		}
		seen[item.Key()] = struct{}{}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Rating > items[j].Rating
	})

	s.trendingMu.Lock()
	s.trending = items
	s.trendingAt = time.Now()
	s.trendingMu.Unlock()

	s.log.Info("trending refreshed", slog.Int("items", len(items)))
	return nil
}

// Suggest returns up to eight known titles matching a partial query.
func (s *Service) Suggest(ctx context.Context, query string) ([]domain.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" || utf8.RuneCountInString(query) > maxQueryLength {
		return nil, ErrInvalidQuery
	}
	if s.catalog == nil || !s.catalog.Enabled() {
		return nil, ErrCatalogDisabled
	}

	records, err := s.catalog.SearchMulti(ctx, query)
	if err != nil {
		return nil, err
	}

	suggestions := make([]domain.Suggestion, 0, maxSuggestions)
	seen := make(map[string]struct{}, maxSuggestions)
	for _, record := range records {
		title := strings.TrimSpace(record.DisplayTitle())
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		suggestions = append(suggestions, domain.Suggestion{Title: title})
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// Detail returns the full record for one title, with cast, trailer and
// streaming platforms resolved. Platform and ratings lookups are best
// effort; the detail itself must exist.
func (s *Service) Detail(ctx context.Context, kind domain.ContentKind, id int) (domain.Content, error) {
	if kind != domain.ContentKindMovie && kind != domain.ContentKindTV {
		return domain.Content{}, ErrUnknownKind
	}
	if s.catalog == nil || !s.catalog.Enabled() {
		return domain.Content{}, ErrCatalogDisabled
	}

	detail, err := s.catalog.Details(ctx, string(kind), id)
	if err != nil {
		if strings.Contains(err.Error(), "HTTP 404") {
			return domain.Content{}, ErrUnknownContent
		}
		return domain.Content{}, err
	}

	item := s.normalizeDetail(detail, kind)

	if providers, err := s.catalog.WatchProviders(ctx, string(kind), id, s.region); err == nil {
		item.Platforms = providers.Providers
	} else {
		s.log.Debug("watch providers lookup failed",
			slog.String("kind", string(kind)),
			slog.Int("id", id),
			slog.String("error", err.Error()),
		)
	}
	if item.Platforms == nil {
		item.Platforms = []string{}
	}

	if s.ratings != nil && s.ratings.Enabled() {
		if ratings, found, err := s.ratings.Lookup(ctx, item.Title, item.Year); err == nil && found {
			if aggregate, ok := omdb.Aggregate(item.Rating, ratings); ok {
				item.DisplayRating = round1(aggregate / 10)
			}
		}
	}
	return item, nil
}

func (s *Service) UpstreamDiagnostics() []domain.UpstreamDiagnostics {
	return s.upstreamDiagnostics()
}
