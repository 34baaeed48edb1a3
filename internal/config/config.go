package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds all pipeline and explorer settings, populated from
// environment variables.
type Config struct {
	// Place query for boundary resolution.
	PlaceCity    string
	PlaceCounty  string
	PlaceState   string
	PlaceCountry string

	Categories    []domain.IUCNCategory
	StatusCSVPath string
	OutputPath    string

	// Geometry cache.
	CacheBackend string // "fs", "memory", or "redis"
	CacheDir     string
	RedisAddr    string
	RedisTTL     time.Duration

	// Upstream services.
	NominatimBaseURL string
	NominatimTimeout time.Duration
	GBIFBaseURL      string
	GBIFTimeout      time.Duration
	GBIFPageLimit    int
	GBIFMaxRetries   int
	GBIFMaxRecords   int
	GBIFPageDelay    time.Duration
	UserAgent        string

	// Explorer server.
	HTTPAddr string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	categories, err := domain.ParseCategories(envOrDefault("IUCN_CATEGORIES", "CR,EN,VU,NT"))
	if err != nil {
		return nil, fmt.Errorf("IUCN_CATEGORIES: %w", err)
	}

	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	gbifTimeout, err := parseDuration("GBIF_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	pageDelay, err := parseDuration("GBIF_PAGE_DELAY", "200ms")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("REDIS_TTL", "168h")
	if err != nil {
		return nil, err
	}

	pageLimit, err := parsePositiveInt("GBIF_PAGE_LIMIT", 300)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parsePositiveInt("GBIF_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	maxRecords, err := parsePositiveInt("GBIF_MAX_RECORDS", 100000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PlaceCity:    envOrDefault("PLACE_CITY", "Marbletown"),
		PlaceCounty:  envOrDefault("PLACE_COUNTY", "Ulster County"),
		PlaceState:   envOrDefault("PLACE_STATE", "New York"),
		PlaceCountry: envOrDefault("PLACE_COUNTRY", "United States"),

		Categories:    categories,
		StatusCSVPath: envOrDefault("STATUS_CSV_PATH", "data/nynhp-status-list.csv"),
		OutputPath:    envOrDefault("OUTPUT_PATH", "data/occurrences.parquet"),

		CacheBackend: envOrDefault("CACHE_BACKEND", "fs"),
		CacheDir:     envOrDefault("CACHE_DIR", ".cache/nominatim"),
		RedisAddr:    envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisTTL:     redisTTL,

		NominatimBaseURL: envOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		NominatimTimeout: nominatimTimeout,
		GBIFBaseURL:      envOrDefault("GBIF_URL", "https://api.gbif.org/v1/occurrence/search"),
		GBIFTimeout:      gbifTimeout,
		GBIFPageLimit:    pageLimit,
		GBIFMaxRetries:   maxRetries,
		GBIFMaxRecords:   maxRecords,
		GBIFPageDelay:    pageDelay,
		UserAgent:        envOrDefault("USER_AGENT", "occurrence-etl/0.1 (+https://github.com/couchcryptid/occurrence-etl)"),

		HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.PlaceCity == "" {
		return nil, errors.New("PLACE_CITY is required")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OUTPUT_PATH is required")
	}
	if cfg.StatusCSVPath == "" {
		return nil, errors.New("STATUS_CSV_PATH is required")
	}
	switch cfg.CacheBackend {
	case "fs", "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q (want fs, memory, or redis)", cfg.CacheBackend)
	}

	return cfg, nil
}

// PlaceQuery assembles the configured place qualifiers.
func (c *Config) PlaceQuery() domain.PlaceQuery {
	return domain.PlaceQuery{
		City:    c.PlaceCity,
		County:  c.PlaceCounty,
		State:   c.PlaceState,
		Country: c.PlaceCountry,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
