package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	RequestTimeout      time.Duration
	LogLevel            string
	LogFormat           string
	UserAgent           string
	TMDBAPIKey          string
	TMDBBaseURL         string
	TMDBImageBaseURL    string
	OMDBAPIKey          string
	OMDBBaseURL         string
	HFAPIToken          string
	HFModelURL          string
	DefaultRegion       string
	RedisURL            string
	CacheTTL            time.Duration
	StaleTTL            time.Duration
	CacheDisabled       bool
	TrendingRefreshSpec string
	AdminToken          string
	RateLimitRPS        float64
	RateLimitBurst      int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:      time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:           getEnv("SEARCH_USER_AGENT", "bingeworthy-search/1.0"),
		TMDBAPIKey:          strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:         getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL:    getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		OMDBAPIKey:          strings.TrimSpace(os.Getenv("OMDB_API_KEY")),
		OMDBBaseURL:         getEnv("OMDB_BASE_URL", "https://www.omdbapi.com/"),
		HFAPIToken:          strings.TrimSpace(os.Getenv("HF_API_TOKEN")),
		HFModelURL:          getEnv("HF_MODEL_URL", "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.2"),
		DefaultRegion:       strings.ToUpper(getEnv("DEFAULT_PROVIDER_REGION", "US")),
		RedisURL:            getEnv("REDIS_URL", ""),
		CacheTTL:            time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 30)) * time.Minute,
		StaleTTL:            time.Duration(getEnvInt("SEARCH_CACHE_STALE_MINUTES", 60)) * time.Minute,
		CacheDisabled:       getEnvBool("SEARCH_CACHE_DISABLED", false),
		TrendingRefreshSpec: getEnv("TRENDING_REFRESH_CRON", "*/30 * * * *"),
		AdminToken:          strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		RateLimitRPS:        getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
