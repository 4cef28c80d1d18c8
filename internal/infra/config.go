package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	StorageDir        string
	StorageBaseURL    string
	GeoIPDBPath       string
	FalAPIKey         string
	FalBaseURL        string
	FalQueueURL       string
	FalImageModel     string
	FalVideoModel     string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	PexelsAPIKey      string
	PexelsBaseURL     string
	SpeechAPIKey      string
	SpeechRegion      string
	SpeechBaseURL     string
	SpeechVoice       string
	AssemblyAIAPIKey  string
	AssemblyAIBaseURL string
	DefaultImageLimit int
	DefaultVideoLimit int
	PurchaseDelay     time.Duration
	PollInterval      time.Duration
	PollMaxAttempts   int
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		StorageDir:        getEnv("STORAGE_DIR", "data/artifacts"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		FalAPIKey:         os.Getenv("FAL_API_KEY"),
		FalBaseURL:        getEnv("FAL_BASE_URL", "https://fal.run"),
		FalQueueURL:       getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalImageModel:     getEnv("FAL_IMAGE_MODEL", "fal-ai/flux/schnell"),
		FalVideoModel:     getEnv("FAL_VIDEO_MODEL", "fal-ai/kling-video/v1.6/standard/image-to-video"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		PexelsAPIKey:      os.Getenv("PEXELS_API_KEY"),
		PexelsBaseURL:     getEnv("PEXELS_BASE_URL", "https://api.pexels.com/v1"),
		SpeechAPIKey:      os.Getenv("AZURE_SPEECH_KEY"),
		SpeechRegion:      getEnv("AZURE_SPEECH_REGION", "eastus"),
		SpeechBaseURL:     os.Getenv("AZURE_SPEECH_BASE_URL"),
		SpeechVoice:       getEnv("AZURE_SPEECH_VOICE", "en-US-JennyNeural"),
		AssemblyAIAPIKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
		AssemblyAIBaseURL: getEnv("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com/v2"),
		DefaultImageLimit: getEnvInt("DEFAULT_IMAGE_LIMIT", 100),
		DefaultVideoLimit: getEnvInt("DEFAULT_VIDEO_LIMIT", 20),
		PurchaseDelay:     time.Millisecond * time.Duration(getEnvInt("PURCHASE_DELAY_MS", 1500)),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", 30),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
