package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// IMS Envista station API.
	IMSAPIToken string
	IMSBaseURL  string

	// FeedURLTemplate is the per-region RSS forecast URL; %d is replaced by the region id.
	FeedURLTemplate string

	HTTPTimeout time.Duration

	// Durable cache tier: "sqlite" (CachePath) or "file" (CacheDir).
	CacheBackend string
	CachePath    string
	CacheDir     string

	FeedRefreshInterval    time.Duration
	StationRefreshInterval time.Duration
	FeedMaxAge             time.Duration

	// MinCoverage is the minimum number of aggregated periods an observation
	// based forecast must have before the synthetic fallback kicks in.
	MinCoverage int
}

// Load reads configuration from environment with sensible defaults. The
// caller is expected to have loaded any .env file beforehand.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.IMSAPIToken = os.Getenv("IMS_API_TOKEN")
	cfg.IMSBaseURL = strings.TrimRight(getenvDefault("IMS_BASE_URL", "https://api.ims.gov.il/v1/envista"), "/")
	cfg.FeedURLTemplate = getenvDefault("FEED_URL_TEMPLATE", "https://ims.gov.il/sites/default/files/ims_data/rss/forecast_city/rssForecastCity_%d_en.xml")
	if !strings.Contains(cfg.FeedURLTemplate, "%d") {
		return nil, fmt.Errorf("invalid FEED_URL_TEMPLATE %q: missing %%d placeholder", cfg.FeedURLTemplate)
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.CacheBackend = getenvDefault("CACHE_BACKEND", "sqlite")
	switch cfg.CacheBackend {
	case "sqlite", "file":
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q (allowed: sqlite, file)", cfg.CacheBackend)
	}
	cfg.CachePath = getenvDefault("CACHE_PATH", "data/ims-weather.db")
	cfg.CacheDir = getenvDefault("CACHE_DIR", "data/cache")

	if cfg.FeedRefreshInterval, err = getenvDuration("FEED_REFRESH_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.StationRefreshInterval, err = getenvDuration("STATION_REFRESH_INTERVAL", "12h"); err != nil {
		return nil, err
	}
	if cfg.FeedMaxAge, err = getenvDuration("FEED_MAX_AGE", "36h"); err != nil {
		return nil, err
	}

	cfg.MinCoverage = getenvInt("MIN_COVERAGE", 3)
	if cfg.MinCoverage < 1 {
		return nil, fmt.Errorf("invalid MIN_COVERAGE %d: must be at least 1", cfg.MinCoverage)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, s)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
