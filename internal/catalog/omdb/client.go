package omdb

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
	defaultBaseURL   = "https://www.omdbapi.com/"
	redisCachePrefix = "binge:omdb:"
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

// Ratings holds the review-site scores OMDb reports for one title. Values
// keep OMDb's string formats: IMDb "7.4/10", Rotten Tomatoes "95%".
type Ratings struct {
	IMDB           string `json:"imdb,omitempty"`
	RottenTomatoes string `json:"rottenTomatoes,omitempty"`
	Plot           string `json:"plot,omitempty"`
}

type apiResponse struct {
	Response string `json:"Response"`
	Plot     string `json:"Plot"`
	Ratings  []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Lookup fetches ratings for a title. The second return value reports
// whether OMDb actually knew the title; unknown titles are not an error.
func (c *Client) Lookup(ctx context.Context, title string, year int) (Ratings, bool, error) {
	if !c.Enabled() {
		return Ratings{}, false, nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Ratings{}, false, nil
	}

	cacheKey := fmt.Sprintf("t:%s:%d", strings.ToLower(title), year)
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, redisCachePrefix+cacheKey).Bytes(); err == nil {
			var cached Ratings
			if json.Unmarshal(data, &cached) == nil {
				return cached, true, nil
			}
		}
	}

	params := url.Values{
		"apikey": {c.apiKey},
		"t":      {title},
	}
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return Ratings{}, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Ratings{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Ratings{}, false, fmt.Errorf("omdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return Ratings{}, false, err
	}
	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Ratings{}, false, err
	}
	if !strings.EqualFold(payload.Response, "True") {
		return Ratings{}, false, nil
	}

	ratings := Ratings{}
	if payload.Plot != "" && payload.Plot != "N/A" {
		ratings.Plot = payload.Plot
	}
	for _, r := range payload.Ratings {
		switch r.Source {
		case "Internet Movie Database":
			ratings.IMDB = r.Value
		case "Rotten Tomatoes":
			ratings.RottenTomatoes = r.Value
		}
	}

	if c.redis != nil {
		if data, err := json.Marshal(ratings); err == nil {
			_ = c.redis.Set(ctx, redisCachePrefix+cacheKey, data, c.cacheTTL).Err()
		}
	}
	return ratings, true, nil
}

// NormalizeIMDB converts OMDb's "7.4/10" format to a 0-100 score.
func NormalizeIMDB(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.SplitN(value, "/", 2)
	score, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, false
	}
	return score * 10, true
}

// NormalizeRT converts Rotten Tomatoes' "95%" format to a 0-100 score.
func NormalizeRT(value string) (float64, bool) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if value == "" {
		return 0, false
	}
	score, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Aggregate blends TMDB's community vote with IMDb and Rotten Tomatoes into
// one 0-100 score. Weights: TMDB 0.2, IMDb 0.5, RT 0.3; only available
// sources participate in the weighted mean. Returns false when no source
// is available.
func Aggregate(tmdbVote float64, ratings Ratings) (float64, bool) {
	var weightedSum, totalWeight float64

	if tmdbVote > 0 {
		weightedSum += tmdbVote * 10 * 0.2
		totalWeight += 0.2
	}
	if imdb, ok := NormalizeIMDB(ratings.IMDB); ok {
		weightedSum += imdb * 0.5
		totalWeight += 0.5
	}
	if rt, ok := NormalizeRT(ratings.RottenTomatoes); ok {
		weightedSum += rt * 0.3
		totalWeight += 0.3
	}
	if totalWeight == 0 {
		return 0, false
	}
	return weightedSum / totalWeight, true
}
