package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/i474232898/ims-weather/internal/cache"
	"github.com/i474232898/ims-weather/internal/config"
	"github.com/i474232898/ims-weather/internal/feeds"
	"github.com/i474232898/ims-weather/internal/store"
	"github.com/i474232898/ims-weather/internal/weather"
	"github.com/i474232898/ims-weather/internal/weather/providers"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cache     *cache.Cache
	service   *weather.Service
	refresher *feeds.Refresher
	close     func() error
}

func newRuntime(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*runtime, error) {
	db, err := store.OpenSQLite(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	sqliteStore := store.NewSQLiteStore(db, logger)
	if err := sqliteStore.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var durable cache.Durable = sqliteStore
	if cfg.CacheBackend == "file" {
		fileStore, err := store.NewFileStore(cfg.CacheDir)
		if err != nil {
			db.Close()
			return nil, err
		}
		durable = fileStore
	}
	c := cache.New(store.NewMemoryStore(), durable, logger)

	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		logger.Warn("could not load Asia/Jerusalem timezone, using UTC", "err", err)
		loc = time.UTC
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	ims := providers.NewIMSClient(httpClient, cfg.IMSBaseURL, cfg.IMSAPIToken, logger)
	feedClient := providers.NewFeedClient(httpClient, cfg.FeedURLTemplate)

	svc := weather.NewService(ims, c, feeds.NewSource(sqliteStore, cfg.FeedMaxAge, logger), logger,
		weather.WithLocation(loc),
		weather.WithMinCoverage(cfg.MinCoverage),
	)

	return &runtime{
		cache:     c,
		service:   svc,
		refresher: feeds.NewRefresher(feedClient, sqliteStore, weather.DefaultRegions, logger),
		close:     db.Close,
	}, nil
}
