package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/i474232898/ims-weather/internal/logging"
	"github.com/i474232898/ims-weather/internal/store"
	"github.com/i474232898/ims-weather/internal/weather"
)

// ItemReader loads stored feed items of a region, newest first.
type ItemReader interface {
	FeedItems(ctx context.Context, regionID int) ([]store.FeedItem, error)
}

// Source serves stored feed items as structured forecasts. It implements
// weather.FeedSource.
type Source struct {
	items  ItemReader
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSource returns a Source that ignores items fetched more than maxAge ago.
func NewSource(items ItemReader, maxAge time.Duration, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		items:  items,
		maxAge: maxAge,
		now:    time.Now,
		logger: logging.Component(logger, "feed_source"),
	}
}

// Forecast merges the daily points of a region's fresh items. When several
// items cover the same date, the most recently published one wins. No fresh
// items yields an empty forecast and no error.
func (s *Source) Forecast(ctx context.Context, regionID int) (weather.FeedForecast, error) {
	items, err := s.items.FeedItems(ctx, regionID)
	if err != nil {
		return weather.FeedForecast{}, fmt.Errorf("load feed items: %w", err)
	}

	out := weather.FeedForecast{RegionID: regionID}
	cutoff := s.now().Add(-s.maxAge)
	byDate := make(map[string]weather.DailyForecastPoint)

	for _, it := range items {
		if s.maxAge > 0 && it.FetchedAt.Before(cutoff) {
			continue
		}
		if it.PublishedAt.After(out.Published) {
			out.Published = it.PublishedAt
		}
		for _, p := range ExtractDaily(it.Title+"\n"+it.Description, it.PublishedAt) {
			if _, ok := byDate[p.Date]; !ok {
				byDate[p.Date] = p
			}
		}
	}

	for _, p := range byDate {
		out.Daily = append(out.Daily, p)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })

	s.logger.Debug("feed forecast", "region", regionID, "items", len(items), "days", len(out.Daily))
	return out, nil
}
