package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStationNotFound is returned for station ids absent from the station list.
	ErrStationNotFound = errors.New("station not found")

	// ErrServiceUnavailable is returned when no station metadata or observations
	// can be obtained from either the upstream API or the cache.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")

	// ErrNoData is returned when a station reported no valid readings.
	ErrNoData = errors.New("no data for station")
)

// StationClient abstracts the upstream station-observation API. It does no
// caching of its own.
type StationClient interface {
	Stations(ctx context.Context) ([]Station, error)
	// Station looks one station up directly. Unknown ids yield an error
	// matching ErrStationNotFound.
	Station(ctx context.Context, id int) (Station, error)
	ChannelData(ctx context.Context, stationID, channelID int, from, to time.Time) (ChannelDataSet, error)
}

// FeedSource yields the structured forecast feed of a region, as prepared by
// the periodic feed refresh. An empty FeedForecast means no usable feed.
type FeedSource interface {
	Forecast(ctx context.Context, regionID int) (FeedForecast, error)
}
