package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/i474232898/ims-weather/internal/geo"
)

// Period selects the length of a requested window.
type Period string

const (
	PeriodShort  Period = "short"
	PeriodMedium Period = "medium"
	PeriodLong   Period = "long"
)

// ParsePeriod validates s as a Period.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodShort, PeriodMedium, PeriodLong:
		return p, nil
	default:
		return "", fmt.Errorf("invalid period %q (allowed: short, medium, long)", s)
	}
}

// Days is the number of calendar days covered by the period.
func (p Period) Days() int {
	switch p {
	case PeriodShort:
		return 2
	case PeriodLong:
		return 30
	default:
		return 7
	}
}

// Hourly reports whether forecasts for p are served at hour granularity.
func (p Period) Hourly() bool {
	return p == PeriodShort
}

// Source tags where a forecast's data came from.
type Source string

const (
	SourceFeed         Source = "feed"
	SourceObservations Source = "observations"
	SourceSynthetic    Source = "synthetic"
)

// Channel is one measured quantity at a station.
type Channel struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Units  string `json:"units"`
	Active bool   `json:"active"`
}

// Station is an observation station with its channels.
type Station struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	ShortName string         `json:"shortName,omitempty"`
	Location  geo.Coordinate `json:"location"`
	Active    bool           `json:"active"`
	RegionID  int            `json:"regionId,omitempty"`
	Channels  []Channel      `json:"channels"`
}

// ObservedChannels returns the ids of the station's active channels that the
// aggregation understands. A station without channel metadata gets every
// known channel.
func (s Station) ObservedChannels() []int {
	if len(s.Channels) == 0 {
		return KnownChannels()
	}
	var ids []int
	for _, ch := range s.Channels {
		if !ch.Active {
			continue
		}
		if _, ok := channelFields[ch.ID]; ok {
			ids = append(ids, ch.ID)
		}
	}
	return ids
}

// ChannelReading is one timestamped value of a channel.
type ChannelReading struct {
	ChannelID int       `json:"channelId"`
	Time      time.Time `json:"time"`
	Value     float64   `json:"value"`
	Valid     bool      `json:"valid"`
}

// ChannelDataSet is the ordered series of one channel over a date range.
type ChannelDataSet struct {
	StationID int              `json:"stationId"`
	ChannelID int              `json:"channelId"`
	Readings  []ChannelReading `json:"readings"`
}

// Measure is a nullable metric rounded to one decimal. It encodes to JSON as
// a string such as "14.0", or null when absent.
type Measure struct {
	value float64
	valid bool
}

// NewMeasure returns a valid measure holding v rounded to one decimal.
func NewMeasure(v float64) Measure {
	return Measure{value: round1(v), valid: true}
}

// Value returns the number and whether it is present.
func (m Measure) Value() (float64, bool) {
	return m.value, m.valid
}

// Valid reports whether the measure holds a value.
func (m Measure) Valid() bool {
	return m.valid
}

// String formats the value with one decimal, or "" when absent.
func (m Measure) String() string {
	if !m.valid {
		return ""
	}
	return strconv.FormatFloat(m.value, 'f', 1, 64)
}

func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Measure{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are accepted too.
		s = string(data)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid measure %s: %w", data, err)
	}
	*m = NewMeasure(v)
	return nil
}

func round1(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0 // normalises -0
	}
	return r
}

// HourlyForecastPoint is one hour of forecast or observed weather.
type HourlyForecastPoint struct {
	Time          time.Time `json:"time"`
	Temperature   Measure   `json:"temperature"`
	Humidity      Measure   `json:"humidity"`
	WindSpeed     Measure   `json:"windSpeed"`
	WindDirection Measure   `json:"windDirection"`
	Precipitation Measure   `json:"precipitation"`
}

// DailyForecastPoint is one calendar day of forecast or observed weather.
type DailyForecastPoint struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	TempMin      Measure `json:"tempMin"`
	TempMax      Measure `json:"tempMax"`
	TempCurrent  Measure `json:"tempCurrent"`
	HumidityAvg  Measure `json:"humidityAvg"`
	WindSpeedAvg Measure `json:"windSpeedAvg"`
	PrecipTotal  Measure `json:"precipTotal"`
}

// LatestObservation holds the most recent valid reading of each known
// channel. Time is that of the newest reading overall.
type LatestObservation struct {
	StationID     int       `json:"stationId"`
	Time          time.Time `json:"time"`
	Temperature   Measure   `json:"temperature"`
	Humidity      Measure   `json:"humidity"`
	WindSpeed     Measure   `json:"windSpeed"`
	WindDirection Measure   `json:"windDirection"`
	Precipitation Measure   `json:"precipitation"`
}

// Region is a forecast coverage area used for feed lookup.
type Region struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
}

// Fallback records a resolver state that could not produce data and why.
type Fallback struct {
	State  State  `json:"state"`
	Reason string `json:"reason"`
}

// Forecast is the resolved forecast for a station and period. Source tells
// callers whether the data is authoritative.
type Forecast struct {
	StationID        int                   `json:"stationId"`
	Period           Period                `json:"period"`
	Source           Source                `json:"source"`
	Region           Region                `json:"region"`
	RegionDistanceKm float64               `json:"regionDistanceKm"`
	From             string                `json:"from"`
	To               string                `json:"to"`
	Hourly           []HourlyForecastPoint `json:"hourly,omitempty"`
	Daily            []DailyForecastPoint  `json:"daily,omitempty"`
	Fallbacks        []Fallback            `json:"fallbacks,omitempty"`
	GeneratedAt      time.Time             `json:"generatedAt"`
}

// Observations is the aggregated history of a station over a backward window.
type Observations struct {
	StationID int                   `json:"stationId"`
	Period    Period                `json:"period"`
	From      string                `json:"from"`
	To        string                `json:"to"`
	Hourly    []HourlyForecastPoint `json:"hourly"`
	Daily     []DailyForecastPoint  `json:"daily"`
}

// FeedForecast is the structured content of a region's forecast feed.
type FeedForecast struct {
	RegionID  int                   `json:"regionId"`
	Published time.Time             `json:"published"`
	Hourly    []HourlyForecastPoint `json:"hourly,omitempty"`
	Daily     []DailyForecastPoint  `json:"daily,omitempty"`
}
