package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "bingeworthy/searchservice/internal/api/http"
	"bingeworthy/searchservice/internal/app"
	"bingeworthy/searchservice/internal/catalog/omdb"
	"bingeworthy/searchservice/internal/catalog/tmdb"
	"bingeworthy/searchservice/internal/inference"
	"bingeworthy/searchservice/internal/metrics"
	"bingeworthy/searchservice/internal/recommend"
	"bingeworthy/searchservice/internal/search"
	"bingeworthy/searchservice/internal/settings"
	"bingeworthy/searchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracing, err := telemetry.Init(ctx, "bingeworthy-search")
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	redisClient := newRedisClient(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	upstreamClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(userAgentTransport(cfg.UserAgent)),
	}

	catalog := tmdb.NewClient(tmdb.Config{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Client:       upstreamClient,
		Redis:        redisClient,
		CacheTTL:     cfg.CacheTTL,
	})
	if !catalog.Enabled() {
		logger.Warn("TMDB_API_KEY is not set, search and trending will be unavailable")
	}

	ratings := omdb.NewClient(omdb.Config{
		APIKey:   cfg.OMDBAPIKey,
		BaseURL:  cfg.OMDBBaseURL,
		Client:   upstreamClient,
		Redis:    redisClient,
		CacheTTL: cfg.CacheTTL,
	})

	searchOptions := []search.ServiceOption{
		search.WithRatings(ratings),
		search.WithRegion(cfg.DefaultRegion),
		search.WithCacheTTL(cfg.CacheTTL, cfg.StaleTTL),
		search.WithCacheDisabled(cfg.CacheDisabled),
		search.WithLogger(logger.With(slog.String("component", "search"))),
	}
	if redisClient != nil {
		searchOptions = append(searchOptions, search.WithRedisCache(search.NewRedisCacheBackend(redisClient)))
	}
	searchService := search.NewService(catalog, cfg.RequestTimeout, searchOptions...)
	searchService.StartBackground(ctx)

	generator := inference.NewClient(inference.Config{
		APIToken: cfg.HFAPIToken,
		ModelURL: cfg.HFModelURL,
		Client:   &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	recommendOptions := []recommend.Option{
		recommend.WithLogger(logger.With(slog.String("component", "recommend"))),
	}
	if generator.Enabled() {
		recommendOptions = append(recommendOptions, recommend.WithGenerator(generator))
	}
	recommendService := recommend.NewService(recommendOptions...)

	var settingsStore settings.Store
	if redisClient != nil {
		settingsStore = settings.NewRedisStore(redisClient)
	} else {
		settingsStore = settings.NewMemoryStore()
	}

	scheduler := startTrendingRefresh(ctx, cfg, searchService, logger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	server := apihttp.NewServer(searchService,
		apihttp.WithRecommender(recommendService),
		apihttp.WithSettings(settingsStore, cfg.AdminToken),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithLogger(logger.With(slog.String("component", "http"))),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func newLogger(cfg app.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		handler = slog.NewTextHandler(os.Stdout, options)
	}
	return slog.New(handler)
}

func newRedisClient(ctx context.Context, cfg app.Config, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, continuing without redis", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without redis", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// startTrendingRefresh schedules a periodic background refresh so the
// trending list is warm before the first visitor asks for it.
func startTrendingRefresh(ctx context.Context, cfg app.Config, searchService *search.Service, logger *slog.Logger) *cron.Cron {
	spec := strings.TrimSpace(cfg.TrendingRefreshSpec)
	if spec == "" {
		return nil
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := searchService.RefreshTrending(refreshCtx); err != nil {
			logger.Warn("trending refresh failed", slog.String("error", err.Error()))
			return
		}
		logger.Debug("trending refreshed")
	})
	if err != nil {
		logger.Warn("invalid trending refresh schedule",
			slog.String("spec", spec),
			slog.String("error", err.Error()),
		)
		return nil
	}
	scheduler.Start()
	return scheduler
}

type headerTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(r)
}

func userAgentTransport(userAgent string) http.RoundTripper {
	return headerTransport{userAgent: userAgent, base: http.DefaultTransport}
}
