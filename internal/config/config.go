// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath     string
	DataDir          string
	ThresholdsPath   string
	LogPath          string
	LogLevel         string
	LogFormat        string
	MetricsAddr      string
	CacheTTL         time.Duration
	CatalogCacheTTL  time.Duration
	CacheMaxEntries  int
	CacheMaxBytes    int
	AnalyzeLimit     int
	PageSize         int
	AggregateWorkers int
	NotifyAnomalies  bool
	Thresholds       models.Thresholds
}

// Default values
const (
	defaultCacheTTL         = 5 * time.Minute
	defaultCatalogCacheTTL  = 24 * time.Hour
	defaultCacheMaxEntries  = 100
	defaultCacheMaxBytes    = 5 << 20
	defaultAnalyzeLimit     = 20
	defaultPageSize         = 50
	defaultAggregateWorkers = 1
	appDirName              = "policydash"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	base := getDefaultBaseDir()
	cfg := &Config{
		DatabasePath:     getEnvString("DATABASE_PATH", filepath.Join(base, "policies.db")),
		DataDir:          getEnvString("DATA_DIR", filepath.Join(base, "imports")),
		ThresholdsPath:   getEnvString("THRESHOLDS_PATH", filepath.Join(base, "thresholds.yaml")),
		LogLevel:         strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnvString("LOG_FORMAT", "text")),
		MetricsAddr:      getEnvString("METRICS_ADDR", ""),
		CacheTTL:         getEnvDuration("CACHE_TTL", defaultCacheTTL),
		CatalogCacheTTL:  getEnvDuration("CATALOG_CACHE_TTL", defaultCatalogCacheTTL),
		CacheMaxEntries:  getEnvInt("CACHE_MAX_ENTRIES", defaultCacheMaxEntries),
		CacheMaxBytes:    getEnvInt("CACHE_MAX_BYTES", defaultCacheMaxBytes),
		AnalyzeLimit:     getEnvInt("ANALYZE_LIMIT", defaultAnalyzeLimit),
		PageSize:         getEnvInt("PAGE_SIZE", defaultPageSize),
		AggregateWorkers: getEnvInt("AGGREGATE_WORKERS", defaultAggregateWorkers),
		NotifyAnomalies:  getEnvBool("NOTIFY_ANOMALIES", true),
	}
	cfg.LogPath = getEnvString("LOG_PATH", filepath.Join(filepath.Dir(cfg.DatabasePath), "policydash.log"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	thresholds, err := LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = thresholds

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure import directory exists
	if err := ensureDir(cfg.DataDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json (got %q)", c.LogFormat)
	}
	if c.CacheTTL <= 0 || c.CatalogCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.CacheMaxEntries <= 0 || c.CacheMaxBytes <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES and CACHE_MAX_BYTES must be positive")
	}
	if c.PageSize <= 0 || c.AnalyzeLimit <= 0 {
		return fmt.Errorf("PAGE_SIZE and ANALYZE_LIMIT must be positive")
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appDirName, ".env"),
			filepath.Join(home, "."+appDirName, ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultBaseDir returns the directory holding the database and imports.
func getDefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appDirName)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
// Accepts a trailing KiB/MiB suffix for byte sizes.
func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	mult := 1
	switch {
	case strings.HasSuffix(value, "MiB"):
		mult, value = 1<<20, strings.TrimSuffix(value, "MiB")
	case strings.HasSuffix(value, "KiB"):
		mult, value = 1<<10, strings.TrimSuffix(value, "KiB")
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n * mult
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, ok := models.ParseBool(value); ok {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
