package main

import (
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/i474232898/ims-weather/internal/config"
	"github.com/i474232898/ims-weather/internal/logging"
)

const appName = "ims-weather"

type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API and background refresh jobs."`
	Cache    CacheCmd    `cmd:"" help:"Inspect or clear the two-level cache."`
	Forecast ForecastCmd `cmd:"" help:"Resolve a forecast for one station and print it as JSON."`
}

type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" help:"Print cache statistics."`
	Clear CacheClearCmd `cmd:"" help:"Remove every cached entry from both tiers."`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name(appName),
		kong.Description("IMS weather data aggregation service."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.AppEnv, cfg.LogLevel, appName)

	kctx.FatalIfErrorf(kctx.Run(cfg, logger))
}
