package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/visualmatch/backend/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Gemini     GeminiConfig
	Search     SearchConfig
	Image      ImageConfig
	Enrichment EnrichmentConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Gemini client implementations selectable through gemini.provider
const (
	ProviderREST  = "rest"
	ProviderGenAI = "genai"
)

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Provider   string        `mapstructure:"provider"`    // "rest" or "genai"
	BaseURL    string        `mapstructure:"base_url"`    // empty selects the provider default
	APIVersion string        `mapstructure:"api_version"` // genai provider only
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SearchConfig holds Google Custom Search configuration
type SearchConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	CX                string        `mapstructure:"cx"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ImageConfig holds limits for uploaded and fetched images
type ImageConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// EnrichmentConfig holds similarity comparison settings
type EnrichmentConfig struct {
	MaxComparisons  int           `mapstructure:"max_comparisons"`
	CompareInterval time.Duration `mapstructure:"compare_interval"`
}

// CacheConfig holds result-set retention configuration
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
	Burst int `mapstructure:"burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	Debug bool   `mapstructure:"debug"` // verbose query building logs
}

// Credentials returns the values that gate whether searches may run
func (c *Config) Credentials() domain.Credentials {
	return domain.Credentials{
		GeminiAPIKey: c.Gemini.APIKey,
		SearchAPIKey: c.Search.APIKey,
		SearchCX:     c.Search.CX,
	}
}

// Load loads configuration from an optional .env file, environment variables
// and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/visualmatch/")

	// Environment variable settings: gemini.api_key -> VISUALMATCH_GEMINI_API_KEY
	v.SetEnvPrefix("VISUALMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound to be picked up by Unmarshal
	for _, key := range []string{"gemini.api_key", "search.api_key", "search.cx"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory when present. Variables
// already set in the environment are not overridden.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	// Gemini defaults
	v.SetDefault("gemini.provider", ProviderREST)
	v.SetDefault("gemini.base_url", "") // each provider applies its own endpoint
	v.SetDefault("gemini.api_version", "v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.timeout", "60s")

	// Search defaults
	v.SetDefault("search.base_url", "https://customsearch.googleapis.com/")
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.requests_per_second", 5)

	// Image defaults
	v.SetDefault("image.timeout", "30s")
	v.SetDefault("image.max_bytes", 10*1024*1024)

	// Enrichment defaults
	v.SetDefault("enrichment.max_comparisons", 10)
	v.SetDefault("enrichment.compare_interval", "1s")

	// Cache defaults
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.cleanup_interval", "5m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.burst", 5)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.debug", false)
}

// validate validates the configuration. Missing credentials are not an error:
// the server starts and reports itself unconfigured.
func validate(config *Config) error {
	if config.Gemini.Provider != ProviderREST && config.Gemini.Provider != ProviderGenAI {
		return fmt.Errorf("gemini provider must be 'rest' or 'genai', got: %s", config.Gemini.Provider)
	}

	if config.Gemini.Model == "" {
		return fmt.Errorf("gemini model is required")
	}

	if _, err := zerolog.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log level %q is not valid: %w", config.Log.Level, err)
	}

	if config.Enrichment.MaxComparisons <= 0 {
		return fmt.Errorf("enrichment max comparisons must be positive, got: %d", config.Enrichment.MaxComparisons)
	}

	if config.Enrichment.CompareInterval < 0 {
		return fmt.Errorf("enrichment compare interval must not be negative, got: %s", config.Enrichment.CompareInterval)
	}

	if config.Image.MaxBytes <= 0 {
		return fmt.Errorf("image max bytes must be positive, got: %d", config.Image.MaxBytes)
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %s", config.Cache.TTL)
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}
