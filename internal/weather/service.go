package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/ims-weather/internal/cache"
	"github.com/i474232898/ims-weather/internal/geo"
	"github.com/i474232898/ims-weather/internal/metrics"
)

const defaultFanOut = 4

// Service answers station, observation and forecast queries. Upstream calls
// go through the cache; forecasts go through the Resolver.
type Service struct {
	client   StationClient
	cache    *cache.Cache
	resolver *Resolver
	regions  []Region
	loc      *time.Location
	now      func() time.Time
	fanOut   int
	logger   *slog.Logger
}

type serviceOptions struct {
	regions     []Region
	loc         *time.Location
	now         func() time.Time
	minCoverage int
	randSource  rand.Source
	fanOut      int
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithRegions replaces DefaultRegions.
func WithRegions(regions []Region) ServiceOption {
	return func(o *serviceOptions) { o.regions = regions }
}

// WithLocation sets the time zone calendar dates are computed in.
func WithLocation(loc *time.Location) ServiceOption {
	return func(o *serviceOptions) { o.loc = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// WithMinCoverage sets the observation coverage threshold.
func WithMinCoverage(n int) ServiceOption {
	return func(o *serviceOptions) { o.minCoverage = n }
}

// WithRandSource seeds the synthetic generator.
func WithRandSource(src rand.Source) ServiceOption {
	return func(o *serviceOptions) { o.randSource = src }
}

// WithFanOut bounds concurrent channel fetches per request.
func WithFanOut(n int) ServiceOption {
	return func(o *serviceOptions) { o.fanOut = n }
}

// NewService wires a Service. feeds may be nil.
func NewService(client StationClient, c *cache.Cache, feeds FeedSource, logger *slog.Logger, opts ...ServiceOption) *Service {
	o := serviceOptions{
		regions:     DefaultRegions,
		loc:         time.UTC,
		now:         time.Now,
		minCoverage: 3,
		fanOut:      defaultFanOut,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		client:  client,
		cache:   c,
		regions: o.regions,
		loc:     o.loc,
		now:     o.now,
		fanOut:  max(o.fanOut, 1),
		logger:  logger,
	}
	s.resolver = NewResolver(o.regions, feeds, s.loadObservations, NewSyntheticGenerator(o.randSource), o.minCoverage, logger)
	s.resolver.now = o.now
	return s
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// Stations returns the station list, cached for its kind's duration.
func (s *Service) Stations(ctx context.Context) ([]Station, error) {
	stations, err := cache.Fetch(ctx, s.cache, cache.KindStations, cache.Params{}, s.client.Stations)
	if err != nil {
		return nil, fmt.Errorf("%w: station list: %v", ErrServiceUnavailable, err)
	}
	return stations, nil
}

// RefreshStations fetches the station list upstream and overwrites the
// cached copy.
func (s *Service) RefreshStations(ctx context.Context) (int, error) {
	stations, err := s.client.Stations(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh stations: %w", err)
	}
	if err := s.cache.Set(ctx, cache.KindStations, cache.Params{}, stations); err != nil {
		return 0, err
	}
	return len(stations), nil
}

// Station returns one station by id. Ids missing from the cached list are
// looked up upstream, since the list may predate the station.
func (s *Service) Station(ctx context.Context, id int) (Station, error) {
	return cache.Fetch(ctx, s.cache, cache.KindStation, cache.Params{StationID: id}, func(ctx context.Context) (Station, error) {
		stations, err := s.Stations(ctx)
		if err != nil {
			return Station{}, err
		}
		for _, st := range stations {
			if st.ID == id {
				return st, nil
			}
		}

		st, err := s.client.Station(ctx, id)
		switch {
		case errors.Is(err, ErrStationNotFound):
			return Station{}, fmt.Errorf("%w: %d", ErrStationNotFound, id)
		case err != nil:
			return Station{}, fmt.Errorf("%w: station %d: %v", ErrServiceUnavailable, id, err)
		}
		s.logger.Info("station missing from cached list found upstream", "station", id)
		return st, nil
	})
}

// Regions returns the configured forecast regions.
func (s *Service) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// NearestRegion returns the region closest to c and the distance to it.
func (s *Service) NearestRegion(c geo.Coordinate) (Region, float64, bool) {
	return NearestRegion(c, s.regions)
}

// Observations aggregates the station's history over the backward window of p.
func (s *Service) Observations(ctx context.Context, stationID int, p Period) (Observations, error) {
	station, err := s.Station(ctx, stationID)
	if err != nil {
		return Observations{}, err
	}
	from, to := DateRange(p, Backward, s.today())
	params := cache.Params{StationID: stationID, Period: string(p), From: from, To: to}

	return cache.Fetch(ctx, s.cache, cache.KindObservations, params, func(ctx context.Context) (Observations, error) {
		sets, err := s.loadObservations(ctx, station, from, to)
		if err != nil {
			return Observations{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return Observations{
			StationID: stationID,
			Period:    p,
			From:      from.Format(dateLayout),
			To:        to.Format(dateLayout),
			Hourly:    AggregateHourly(sets),
			Daily:     AggregateDaily(sets),
		}, nil
	})
}

// Forecast resolves the forward-looking forecast of p for a station. Feed and
// observation results are cached; synthetic ones are regenerated each time
// so real data replaces them as soon as it is available.
func (s *Service) Forecast(ctx context.Context, stationID int, p Period) (Forecast, error) {
	station, err := s.Station(ctx, stationID)
	if err != nil {
		return Forecast{}, err
	}
	from, to := DateRange(p, Forward, s.today())
	params := cache.Params{StationID: stationID, Period: string(p), From: from, To: to}

	if f, ok := cache.Get[Forecast](ctx, s.cache, cache.KindForecast, params); ok {
		return f, nil
	}

	f := s.resolver.Resolve(ctx, Request{Station: station, Period: p, From: from, To: to})
	metrics.ForecastsResolved.WithLabelValues(string(p), string(f.Source)).Inc()

	if f.Source != SourceSynthetic {
		if err := s.cache.Set(ctx, cache.KindForecast, params, f); err != nil {
			s.logger.Warn("forecast cache write failed", "station", stationID, "err", err)
		}
	}
	return f, nil
}

// Latest returns today's newest valid reading of each known channel.
func (s *Service) Latest(ctx context.Context, stationID int) (LatestObservation, error) {
	station, err := s.Station(ctx, stationID)
	if err != nil {
		return LatestObservation{}, err
	}
	now := s.today()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	params := cache.Params{StationID: stationID, From: day, To: day}

	return cache.Fetch(ctx, s.cache, cache.KindLatest, params, func(ctx context.Context) (LatestObservation, error) {
		sets, err := s.loadChannels(ctx, station, day, day, cache.WithTTL(s.cache.Duration(cache.KindLatest)))
		if err != nil {
			return LatestObservation{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		obs, ok := LatestReadings(stationID, sets)
		if !ok {
			return LatestObservation{}, fmt.Errorf("%w: %d", ErrNoData, stationID)
		}
		return obs, nil
	})
}

var errAllChannelsFailed = errors.New("all channel fetches failed")

// loadObservations fetches the station's channels concurrently through the
// cache. A failing channel is logged and left out; only a total failure is
// an error.
func (s *Service) loadObservations(ctx context.Context, station Station, from, to time.Time) ([]ChannelDataSet, error) {
	return s.loadChannels(ctx, station, from, to)
}

// loadChannels is loadObservations with cache call options, so that today's
// data can expire as quickly as the latest reading does.
func (s *Service) loadChannels(ctx context.Context, station Station, from, to time.Time, opts ...cache.CallOption) ([]ChannelDataSet, error) {
	channels := station.ObservedChannels()
	if len(channels) == 0 {
		return nil, nil
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		sets    []ChannelDataSet
		lastErr error
	)
	g.SetLimit(s.fanOut)

	for _, ch := range channels {
		g.Go(func() error {
			ds, err := s.channelData(ctx, station.ID, ch, from, to, opts...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("channel fetch failed", "station", station.ID, "channel", ch, "err", err)
				lastErr = err
				return nil
			}
			sets = append(sets, ds)
			return nil
		})
	}
	_ = g.Wait()

	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: %v", errAllChannelsFailed, lastErr)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].ChannelID < sets[j].ChannelID })
	return sets, nil
}

func (s *Service) channelData(ctx context.Context, stationID, channelID int, from, to time.Time, opts ...cache.CallOption) (ChannelDataSet, error) {
	params := cache.Params{StationID: stationID, ChannelID: channelID, From: from, To: to}
	return cache.Fetch(ctx, s.cache, cache.KindChannelData, params, func(ctx context.Context) (ChannelDataSet, error) {
		return s.client.ChannelData(ctx, stationID, channelID, from, to)
	}, opts...)
}
