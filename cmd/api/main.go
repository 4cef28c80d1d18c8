package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/credits"
	"storyforge/internal/http/handlers"
	httpapi "storyforge/internal/http/httpapi"
	"storyforge/internal/infra"
	"storyforge/internal/infra/credentials"
	"storyforge/internal/infra/geoip"
	"storyforge/internal/ledger"
	"storyforge/internal/middleware"
	"storyforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without remaining-counts cache")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	fileStore, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	usageRepo := repo.NewUsageRepository(dbpool, cfg.DefaultImageLimit, cfg.DefaultVideoLimit)
	jobRepo := repo.NewPipelineJobRepository(dbpool)
	artifactRepo := repo.NewArtifactRepository(dbpool)

	usageLedger := ledger.New(usageRepo, logger,
		ledger.WithCache(ledger.NewCache(redisClient)),
		ledger.WithEventSink(ledger.NewSQLEventSink(runner)),
	)
	purchaser := credits.NewSimulator(usageLedger, cfg.PurchaseDelay, logger)

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	credStore := credentials.NewStore(runner)
	app := &handlers.App{
		Logger:    logger,
		SQL:       runner,
		Ledger:    usageLedger,
		Purchaser: purchaser,
		Jobs:      jobRepo,
		Artifacts: artifactRepo,
		Blobs:     fileStore,
		AdminKey:  os.Getenv("ADMIN_KEY"),
		Proxy: handlers.ProxyConfig{
			Client: &http.Client{Timeout: 60 * time.Second},
			Vendors: map[string]handlers.ProxyVendor{
				"falai":      {BaseURL: cfg.FalBaseURL, APIKey: credStore.TokenOr(ctx, credentials.ProviderFal, cfg.FalAPIKey), AuthStyle: "key"},
				"gemini":     {BaseURL: cfg.GeminiBaseURL, APIKey: credStore.TokenOr(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey), AuthStyle: "query"},
				"pexels":     {BaseURL: cfg.PexelsBaseURL, APIKey: credStore.TokenOr(ctx, credentials.ProviderPexels, cfg.PexelsAPIKey), AuthStyle: "plain"},
				"speech":     {BaseURL: speechBaseURL(cfg), APIKey: credStore.TokenOr(ctx, credentials.ProviderSpeech, cfg.SpeechAPIKey), AuthStyle: "subscription"},
				"transcribe": {BaseURL: cfg.AssemblyAIBaseURL, APIKey: credStore.TokenOr(ctx, credentials.ProviderAssemblyAI, cfg.AssemblyAIAPIKey), AuthStyle: "plain"},
			},
		},
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  allowedOrigins(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   countryLookup,
		DefaultLocale:   "en",
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func speechBaseURL(cfg *infra.Config) string {
	if cfg.SpeechBaseURL != "" {
		return cfg.SpeechBaseURL
	}
	return "https://" + cfg.SpeechRegion + ".tts.speech.microsoft.com"
}

func allowedOrigins() []string {
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		return splitCSV(v)
	}
	return []string{"http://localhost:5173", "http://localhost:3000"}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
