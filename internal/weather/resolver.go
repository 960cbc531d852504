package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// State is a step of forecast resolution.
type State string

const (
	StateResolveRegion     State = "resolve_region"
	StateTryFeed           State = "try_feed"
	StateTryObservations   State = "try_observations"
	StateGenerateSynthetic State = "generate_synthetic"
	StateDone              State = "done"
)

// ObservationLoader returns the channel series of a station over a window.
type ObservationLoader func(ctx context.Context, station Station, from, to time.Time) ([]ChannelDataSet, error)

// Request is one forecast resolution: a station and the window to fill.
type Request struct {
	Station Station
	Period  Period
	From    time.Time
	To      time.Time
}

// outcome is the tagged result of a data-producing state: either points with
// their source, or the reason the next state must be tried.
type outcome struct {
	ok     bool
	source Source
	hourly []HourlyForecastPoint
	daily  []DailyForecastPoint
	reason string
}

func produced(source Source, hourly []HourlyForecastPoint, daily []DailyForecastPoint) outcome {
	return outcome{ok: true, source: source, hourly: hourly, daily: daily}
}

func needsFallback(format string, args ...any) outcome {
	return outcome{reason: fmt.Sprintf(format, args...)}
}

// resolution carries what earlier states learned to later ones.
type resolution struct {
	req      Request
	region   Region
	baseTemp float64
	hasBase  bool
	forecast Forecast
}

// transition is the result of one step.
type transition struct {
	next   State
	reason string // non-empty when the step fell back
}

// Resolver picks the best available forecast for a station, trying the
// region feed, then aggregated observations, then synthetic data. It always
// produces a forecast.
type Resolver struct {
	regions      []Region
	feeds        FeedSource
	observations ObservationLoader
	generator    *SyntheticGenerator
	minCoverage  int
	now          func() time.Time
	logger       *slog.Logger
}

// NewResolver builds a Resolver. feeds may be nil, in which case resolution
// starts from observations.
func NewResolver(regions []Region, feeds FeedSource, observations ObservationLoader, generator *SyntheticGenerator, minCoverage int, logger *slog.Logger) *Resolver {
	if minCoverage < 1 {
		minCoverage = 1
	}
	if generator == nil {
		generator = NewSyntheticGenerator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		regions:      regions,
		feeds:        feeds,
		observations: observations,
		generator:    generator,
		minCoverage:  minCoverage,
		now:          time.Now,
		logger:       logger,
	}
}

// Resolve walks the states until one produces data.
func (r *Resolver) Resolve(ctx context.Context, req Request) Forecast {
	res := &resolution{
		req: req,
		forecast: Forecast{
			StationID: req.Station.ID,
			Period:    req.Period,
			From:      req.From.Format(dateLayout),
			To:        req.To.Format(dateLayout),
		},
	}

	state := StateResolveRegion
	for state != StateDone {
		t := r.step(ctx, state, res)
		if t.reason != "" {
			r.logger.Info("forecast fallback",
				"station", req.Station.ID, "period", req.Period, "state", state, "reason", t.reason)
			res.forecast.Fallbacks = append(res.forecast.Fallbacks, Fallback{State: state, Reason: t.reason})
		}
		state = t.next
	}

	res.forecast.GeneratedAt = r.now().UTC()
	return res.forecast
}

func (r *Resolver) step(ctx context.Context, state State, res *resolution) transition {
	switch state {
	case StateResolveRegion:
		return r.resolveRegion(res)
	case StateTryFeed:
		return r.finish(res, r.tryFeed(ctx, res), StateTryObservations)
	case StateTryObservations:
		return r.finish(res, r.tryObservations(ctx, res), StateGenerateSynthetic)
	case StateGenerateSynthetic:
		return r.finish(res, r.generateSynthetic(res), StateDone)
	default:
		return transition{next: StateDone}
	}
}

// finish stores a successful outcome or moves on to fallback.
func (r *Resolver) finish(res *resolution, o outcome, fallback State) transition {
	if !o.ok {
		return transition{next: fallback, reason: o.reason}
	}
	res.forecast.Source = o.source
	res.forecast.Hourly = o.hourly
	res.forecast.Daily = o.daily
	return transition{next: StateDone}
}

func (r *Resolver) resolveRegion(res *resolution) transition {
	region, dist, ok := NearestRegion(res.req.Station.Location, r.regions)
	if !ok {
		return transition{next: StateTryObservations, reason: "no regions configured"}
	}
	res.region = region
	res.forecast.Region = region
	res.forecast.RegionDistanceKm = round1(dist)
	return transition{next: StateTryFeed}
}

func (r *Resolver) tryFeed(ctx context.Context, res *resolution) outcome {
	if r.feeds == nil {
		return needsFallback("no feed source")
	}

	feed, err := r.feeds.Forecast(ctx, res.region.ID)
	if err != nil {
		return needsFallback("feed for region %d: %v", res.region.ID, err)
	}

	from, to := res.req.From, res.req.To
	expected := ExpectedPeriods(res.req.Period, from, to)
	need := min(r.minCoverage, expected)

	if res.req.Period.Hourly() {
		end := to.AddDate(0, 0, 1)
		var hourly []HourlyForecastPoint
		for _, p := range feed.Hourly {
			if !p.Time.Before(from) && p.Time.Before(end) {
				hourly = append(hourly, p)
			}
		}
		if len(hourly) == 0 {
			return needsFallback("feed for region %d has no hourly entries in window", res.region.ID)
		}
		if len(hourly) < need {
			return needsFallback("insufficient feed coverage: %d of %d hours (need %d)", len(hourly), expected, need)
		}
		return produced(SourceFeed, hourly, nil)
	}

	lo, hi := from.Format(dateLayout), to.Format(dateLayout)
	var daily []DailyForecastPoint
	for _, p := range feed.Daily {
		if p.Date >= lo && p.Date <= hi {
			daily = append(daily, p)
		}
	}
	if len(daily) == 0 {
		return needsFallback("feed for region %d has no daily entries in window", res.region.ID)
	}
	if len(daily) < need {
		return needsFallback("insufficient feed coverage: %d of %d days (need %d)", len(daily), expected, need)
	}
	return produced(SourceFeed, nil, daily)
}

func (r *Resolver) tryObservations(ctx context.Context, res *resolution) outcome {
	if r.observations == nil {
		return needsFallback("no observation loader")
	}

	sets, err := r.observations(ctx, res.req.Station, res.req.From, res.req.To)
	if err != nil {
		return needsFallback("observations: %v", err)
	}
	if v, ok := latestTemperature(sets); ok {
		res.baseTemp, res.hasBase = v, true
	}

	expected := ExpectedPeriods(res.req.Period, res.req.From, res.req.To)
	need := min(r.minCoverage, expected)

	if res.req.Period.Hourly() {
		hourly := AggregateHourly(sets)
		if len(hourly) < need {
			return needsFallback("insufficient coverage: %d of %d hours (need %d)", len(hourly), expected, need)
		}
		return produced(SourceObservations, hourly, nil)
	}

	daily := AggregateDaily(sets)
	if len(daily) < need {
		return needsFallback("insufficient coverage: %d of %d days (need %d)", len(daily), expected, need)
	}
	return produced(SourceObservations, nil, daily)
}

func (r *Resolver) generateSynthetic(res *resolution) outcome {
	base := ClimateNormal(res.req.From.Month())
	if res.hasBase {
		base = res.baseTemp
	}
	hourly, daily := r.generator.Generate(res.req.Period, res.req.From, res.req.To, base)
	return produced(SourceSynthetic, hourly, daily)
}
