package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	defaultLanguage     = "en-US"
	redisCachePrefix    = "binge:tmdb:"
)

type Client struct {
	apiKey    string
	baseURL   string
	imageBase string
	http      *http.Client
	redis     *redis.Client
	cacheTTL  time.Duration
}

type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Client       *http.Client
	Redis        *redis.Client
	CacheTTL     time.Duration
}

// Record is one raw row from a TMDB list endpoint (search, trending). Movie
// rows carry title/release_date, TV rows carry name/first_air_date.
type Record struct {
	ID               int     `json:"id"`
	Title            string  `json:"title,omitempty"`
	Name             string  `json:"name,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`
	MediaType        string  `json:"media_type,omitempty"`
}

func (r Record) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r Record) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// Detail is the full record returned by /movie/{id} and /tv/{id} with
// credits and videos appended.
type Detail struct {
	Record
	Runtime        int   `json:"runtime,omitempty"`
	EpisodeRunTime []int `json:"episode_run_time,omitempty"`
	Status         string `json:"status,omitempty"`
	Genres         []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres,omitempty"`
	ProductionCountries []struct {
		ISO  string `json:"iso_3166_1"`
		Name string `json:"name"`
	} `json:"production_countries,omitempty"`
	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
	} `json:"credits"`
	Videos struct {
		Results []Video `json:"results"`
	} `json:"videos"`
}

type Video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// WatchRegion lists the streaming platforms TMDB knows for one title in one
// region, plus a link to the TMDB watch page.
type WatchRegion struct {
	Providers []string `json:"providers"`
	Link      string   `json:"link,omitempty"`
}

type listResponse struct {
	Results []Record `json:"results"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	imageBase := strings.TrimSpace(cfg.ImageBaseURL)
	if imageBase == "" {
		imageBase = defaultImageBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Client{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   strings.TrimRight(baseURL, "/"),
		imageBase: strings.TrimRight(imageBase, "/"),
		http:      httpClient,
		redis:     cfg.Redis,
		cacheTTL:  cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ImageURL resolves a TMDB image path against the configured image base.
func (c *Client) ImageURL(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return c.imageBase + path
}

// SearchMovies queries /search/movie for one page of results.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) ([]Record, error) {
	return c.searchPage(ctx, "/search/movie", query, page)
}

// SearchShows queries /search/tv for one page of results.
func (c *Client) SearchShows(ctx context.Context, query string, page int) ([]Record, error) {
	return c.searchPage(ctx, "/search/tv", query, page)
}

func (c *Client) searchPage(ctx context.Context, path, query string, page int) ([]Record, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("tmdb api key is not configured")
	}
	if page <= 0 {
		page = 1
	}
	params := url.Values{
		"api_key":       {c.apiKey},
		"query":         {strings.TrimSpace(query)},
		"language":      {defaultLanguage},
		"include_adult": {"false"},
		"page":          {strconv.Itoa(page)},
	}
	var response listResponse
	if err := c.getJSON(ctx, path+"?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// Trending queries /trending/all/week and keeps only movie and TV rows.
func (c *Client) Trending(ctx context.Context) ([]Record, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("tmdb api key is not configured")
	}
	params := url.Values{
		"api_key":  {c.apiKey},
		"language": {defaultLanguage},
		"page":     {"1"},
	}
	var response listResponse
	if err := c.getJSON(ctx, "/trending/all/week?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	results := make([]Record, 0, len(response.Results))
	for _, r := range response.Results {
		if r.MediaType == "movie" || r.MediaType == "tv" {
			results = append(results, r)
		}
	}
	return results, nil
}

// SearchMulti queries /search/multi, keeping movie and TV rows only. Used by
// the suggest endpoint where a single mixed page is enough.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]Record, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("tmdb api key is not configured")
	}
	params := url.Values{
		"api_key":       {c.apiKey},
		"query":         {strings.TrimSpace(query)},
		"language":      {defaultLanguage},
		"include_adult": {"false"},
		"page":          {"1"},
	}
	var response listResponse
	if err := c.getJSON(ctx, "/search/multi?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	results := make([]Record, 0, len(response.Results))
	for _, r := range response.Results {
		if r.MediaType == "movie" || r.MediaType == "tv" {
			results = append(results, r)
		}
	}
	return results, nil
}

// Details fetches /movie/{id} or /tv/{id} with credits and videos appended.
// Results are cached in Redis when a client is configured: detail pages
// change rarely and each one costs an upstream round trip.
func (c *Client) Details(ctx context.Context, kind string, id int) (Detail, error) {
	var detail Detail
	if !c.Enabled() {
		return detail, fmt.Errorf("tmdb api key is not configured")
	}
	if kind != "movie" && kind != "tv" {
		return detail, fmt.Errorf("unknown media kind %q", kind)
	}

	cacheKey := fmt.Sprintf("detail:%s:%d", kind, id)
	if c.cacheGet(ctx, cacheKey, &detail) {
		return detail, nil
	}

	params := url.Values{
		"api_key":            {c.apiKey},
		"language":           {defaultLanguage},
		"append_to_response": {"credits,videos"},
	}
	path := fmt.Sprintf("/%s/%d?%s", kind, id, params.Encode())
	if err := c.getJSON(ctx, path, &detail); err != nil {
		return Detail{}, err
	}
	c.cacheSet(ctx, cacheKey, detail)
	return detail, nil
}

// WatchProviders fetches the streaming platform list for one title in one
// region from /{kind}/{id}/watch/providers. A title with no providers in the
// region returns an empty list, not an error.
func (c *Client) WatchProviders(ctx context.Context, kind string, id int, region string) (WatchRegion, error) {
	var out WatchRegion
	if !c.Enabled() {
		return out, fmt.Errorf("tmdb api key is not configured")
	}
	if kind != "movie" && kind != "tv" {
		return out, fmt.Errorf("unknown media kind %q", kind)
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "US"
	}

	cacheKey := fmt.Sprintf("providers:%s:%d:%s", kind, id, region)
	if c.cacheGet(ctx, cacheKey, &out) {
		return out, nil
	}

	params := url.Values{"api_key": {c.apiKey}}
	path := fmt.Sprintf("/%s/%d/watch/providers?%s", kind, id, params.Encode())

	var response struct {
		Results map[string]struct {
			Link     string `json:"link"`
			Flatrate []struct {
				ProviderName string `json:"provider_name"`
			} `json:"flatrate"`
			Rent []struct {
				ProviderName string `json:"provider_name"`
			} `json:"rent"`
			Buy []struct {
				ProviderName string `json:"provider_name"`
			} `json:"buy"`
			Ads []struct {
				ProviderName string `json:"provider_name"`
			} `json:"ads"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, path, &response); err != nil {
		return WatchRegion{}, err
	}

	info := response.Results[region]
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out.Providers = append(out.Providers, name)
	}
	for _, p := range info.Flatrate {
		add(p.ProviderName)
	}
	for _, p := range info.Rent {
		add(p.ProviderName)
	}
	for _, p := range info.Buy {
		add(p.ProviderName)
	}
	for _, p := range info.Ads {
		add(p.ProviderName)
	}
	out.Link = info.Link

	c.cacheSet(ctx, cacheKey, out)
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, pathAndQuery string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

func (c *Client) cacheGet(ctx context.Context, key string, dest any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *Client) cacheSet(ctx context.Context, key string, value any) {
	if c.redis == nil {
		return
	}
	if data, err := json.Marshal(value); err == nil {
		_ = c.redis.Set(ctx, redisCachePrefix+key, data, c.cacheTTL).Err()
	}
}
