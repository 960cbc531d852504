package weather

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// climateNormals are typical mean air temperatures (°C) per month for the
// coastal plain, used when a station has no recent temperature reading.
var climateNormals = [12]float64{13, 14, 16, 19, 22, 25, 27, 28, 26, 23, 19, 15}

// ClimateNormal returns the default base temperature for month m.
func ClimateNormal(m time.Month) float64 {
	return climateNormals[m-1]
}

// SyntheticGenerator fills a forecast window with plausible values around a
// base temperature. The random source is injected so output is reproducible
// under a fixed seed.
type SyntheticGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticGenerator returns a generator drawing from src. A nil src seeds
// from the runtime's random source.
func NewSyntheticGenerator(src rand.Source) *SyntheticGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &SyntheticGenerator{rng: rand.New(src)}
}

// jitter returns a uniform value in [-1, 1).
func (g *SyntheticGenerator) jitter() float64 {
	return g.rng.Float64()*2 - 1
}

// Hourly returns one point per hour from the start of from's day to the end
// of to's day. Temperature follows a diurnal cycle peaking mid-afternoon.
func (g *SyntheticGenerator) Hourly(from, to time.Time, baseTemp float64) []HourlyForecastPoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	days := DaysInRange(from, to)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	points := make([]HourlyForecastPoint, 0, days*24)
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for h := 0; h < 24; h++ {
			ts := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location())
			diurnal := 5 * math.Sin(2*math.Pi*float64(h-9)/24)
			noise := g.jitter()

			precip := 0.0
			if g.rng.Float64() > 0.8 {
				precip = g.rng.Float64() * 2
			}

			points = append(points, HourlyForecastPoint{
				Time:          ts,
				Temperature:   NewMeasure(baseTemp + diurnal + noise),
				Humidity:      NewMeasure(clamp(60-3*diurnal+5*noise, 10, 100)),
				WindSpeed:     NewMeasure(1 + g.rng.Float64()*7),
				WindDirection: NewMeasure(float64(g.rng.IntN(3600)) / 10),
				Precipitation: NewMeasure(precip),
			})
		}
	}
	return points
}

// Daily returns one point per calendar day of the window. The daily mean
// drifts slowly around baseTemp.
func (g *SyntheticGenerator) Daily(from, to time.Time, baseTemp float64) []DailyForecastPoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	days := DaysInRange(from, to)
	points := make([]DailyForecastPoint, 0, days)
	for d := 0; d < days; d++ {
		date := from.AddDate(0, 0, d)
		drift := 3 * math.Sin(2*math.Pi*float64(d)/14)
		mid := baseTemp + drift + 1.5*g.jitter()
		low := mid - (4 + 2*g.rng.Float64())
		high := mid + (4 + 2*g.rng.Float64())

		precip := 0.0
		if g.rng.Float64() > 0.8 {
			precip = g.rng.Float64() * 10
		}

		points = append(points, DailyForecastPoint{
			Date:         date.Format(dateLayout),
			TempMin:      NewMeasure(low),
			TempMax:      NewMeasure(high),
			TempCurrent:  NewMeasure(mid),
			HumidityAvg:  NewMeasure(clamp(60-2*drift+4*g.jitter(), 10, 100)),
			WindSpeedAvg: NewMeasure(2 + g.rng.Float64()*4),
			PrecipTotal:  NewMeasure(precip),
		})
	}
	return points
}

// Generate fills the window of p: hourly points for short periods, daily
// points otherwise.
func (g *SyntheticGenerator) Generate(p Period, from, to time.Time, baseTemp float64) ([]HourlyForecastPoint, []DailyForecastPoint) {
	if p.Hourly() {
		return g.Hourly(from, to, baseTemp), nil
	}
	return nil, g.Daily(from, to, baseTemp)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
