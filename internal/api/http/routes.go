package httpapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ims-weather/internal/cache"
	"github.com/i474232898/ims-weather/internal/geo"
	"github.com/i474232898/ims-weather/internal/weather"
)

var validate = validator.New()

// WeatherService is the query surface the handlers need.
type WeatherService interface {
	Stations(ctx context.Context) ([]weather.Station, error)
	Station(ctx context.Context, id int) (weather.Station, error)
	Regions() []weather.Region
	NearestRegion(c geo.Coordinate) (weather.Region, float64, bool)
	Observations(ctx context.Context, stationID int, p weather.Period) (weather.Observations, error)
	Forecast(ctx context.Context, stationID int, p weather.Period) (weather.Forecast, error)
	Latest(ctx context.Context, stationID int) (weather.LatestObservation, error)
}

// CacheAdmin exposes cache maintenance.
type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	Clear(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService, caches CacheAdmin, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		stations, err := service.Stations(c.UserContext())
		if err != nil {
			return serviceError(logger, err)
		}
		return c.JSON(fiber.Map{
			"count":    len(stations),
			"stations": stations,
		})
	})

	v1.Get("/stations/:id", func(c *fiber.Ctx) error {
		id, err := stationID(c)
		if err != nil {
			return err
		}
		station, err := service.Station(c.UserContext(), id)
		if err != nil {
			return serviceError(logger, err)
		}
		resp := fiber.Map{"station": station}
		if region, dist, ok := service.NearestRegion(station.Location); ok {
			resp["region"] = region
			resp["regionDistanceKm"] = dist
		}
		return c.JSON(resp)
	})

	v1.Get("/stations/:id/latest", func(c *fiber.Ctx) error {
		id, err := stationID(c)
		if err != nil {
			return err
		}
		latest, err := service.Latest(c.UserContext(), id)
		if err != nil {
			return serviceError(logger, err)
		}
		return c.JSON(latest)
	})

	v1.Get("/stations/:id/observations", func(c *fiber.Ctx) error {
		id, err := stationID(c)
		if err != nil {
			return err
		}
		p, err := periodQuery(c)
		if err != nil {
			return err
		}
		obs, err := service.Observations(c.UserContext(), id, p)
		if err != nil {
			return serviceError(logger, err)
		}
		return c.JSON(obs)
	})

	v1.Get("/stations/:id/forecast", func(c *fiber.Ctx) error {
		id, err := stationID(c)
		if err != nil {
			return err
		}
		p, err := periodQuery(c)
		if err != nil {
			return err
		}
		f, err := service.Forecast(c.UserContext(), id, p)
		if err != nil {
			return serviceError(logger, err)
		}
		return c.JSON(f)
	})

	v1.Get("/regions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"regions": service.Regions()})
	})

	v1.Get("/cache/stats", func(c *fiber.Ctx) error {
		return c.JSON(caches.Stats(c.UserContext()))
	})

	v1.Post("/cache/clear", func(c *fiber.Ctx) error {
		if err := caches.Clear(c.UserContext()); err != nil {
			logger.Error("cache clear failed", "err", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
		return c.JSON(fiber.Map{"cleared": true})
	})
}

// stationParams holds the path parameters of station routes.
type stationParams struct {
	ID int `validate:"required,min=1"`
}

func stationID(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "station id must be an integer")
	}
	if err := validate.Struct(stationParams{ID: id}); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "station id must be a positive integer")
	}
	return id, nil
}

// periodParams holds the query parameters of windowed routes.
type periodParams struct {
	Period string `validate:"oneof=short medium long"`
}

func periodQuery(c *fiber.Ctx) (weather.Period, error) {
	q := periodParams{Period: c.Query("period", string(weather.PeriodMedium))}
	if err := validate.Struct(q); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "period must be one of short, medium, long")
	}
	return weather.Period(q.Period), nil
}

// serviceError maps domain errors onto HTTP statuses.
func serviceError(logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, weather.ErrStationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "station not found")
	case errors.Is(err, weather.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no data for station today")
	case errors.Is(err, weather.ErrServiceUnavailable):
		logger.Warn("upstream unavailable", "err", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather data temporarily unavailable")
	default:
		logger.Error("request failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
