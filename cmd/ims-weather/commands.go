package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/ims-weather/internal/api/http"
	"github.com/i474232898/ims-weather/internal/config"
	"github.com/i474232898/ims-weather/internal/scheduler"
	"github.com/i474232898/ims-weather/internal/weather"
)

type ServeCmd struct {
	NoJobs bool `help:"Disable the background feed refresh and station warm-up jobs."`
}

func (c *ServeCmd) Run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if !c.NoJobs {
		sched := scheduler.New(logger,
			scheduler.Job{
				Name:      "feed-refresh",
				Interval:  cfg.FeedRefreshInterval,
				Immediate: true,
				Run: func(ctx context.Context) error {
					res, err := rt.refresher.Refresh(ctx)
					if err != nil {
						return err
					}
					logger.Info("feeds refreshed", "regions", res.Regions, "failed", res.Failed, "items", res.Items)
					return nil
				},
			},
			scheduler.Job{
				Name:     "station-warmup",
				Interval: cfg.StationRefreshInterval,
				Timeout:  time.Minute,
				Run: func(ctx context.Context) error {
					n, err := rt.service.RefreshStations(ctx)
					if err != nil {
						return err
					}
					logger.Info("station list refreshed", "stations", n)
					return nil
				},
			},
		)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	app := httpapi.NewApp(appName, cfg.AppEnv == "dev")
	httpapi.RegisterRoutes(app, rt.service, rt.cache, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "err", err)
	}
	logger.Info("server stopped")
	return nil
}

type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return printJSON(rt.cache.Stats(ctx))
}

type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.cache.Clear(ctx); err != nil {
		return err
	}
	logger.Info("cache cleared")
	return nil
}

type ForecastCmd struct {
	Station int           `required:"" help:"IMS station id."`
	Period  string        `enum:"short,medium,long" default:"medium" help:"Forecast window (short, medium, long)."`
	Timeout time.Duration `default:"1m" help:"Overall deadline for the lookup."`
}

func (c *ForecastCmd) Run(cfg *config.AppConfig, logger *slog.Logger) error {
	if c.Station < 1 {
		return errors.New("--station must be a positive integer")
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	f, err := rt.service.Forecast(ctx, c.Station, weather.Period(c.Period))
	if err != nil {
		return err
	}
	return printJSON(f)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
