package weather

import (
	"math"
	"sort"
	"time"
)

// Station channel ids the aggregation understands.
const (
	ChannelRain          = 1
	ChannelWindSpeed     = 4
	ChannelWindDirection = 5
	ChannelTemperature   = 7
	ChannelHumidity      = 8
)

type field int

const (
	fieldPrecipitation field = iota
	fieldWindSpeed
	fieldWindDirection
	fieldTemperature
	fieldHumidity
)

var channelFields = map[int]field{
	ChannelRain:          fieldPrecipitation,
	ChannelWindSpeed:     fieldWindSpeed,
	ChannelWindDirection: fieldWindDirection,
	ChannelTemperature:   fieldTemperature,
	ChannelHumidity:      fieldHumidity,
}

// KnownChannels lists the channel ids the aggregation maps to forecast fields.
func KnownChannels() []int {
	return []int{ChannelRain, ChannelWindSpeed, ChannelWindDirection, ChannelTemperature, ChannelHumidity}
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) measure() Measure {
	if m.n == 0 {
		return Measure{}
	}
	return NewMeasure(m.sum / float64(m.n))
}

// circularMean averages angles in degrees through their unit vectors so that
// 350 and 10 average to 0 rather than 180.
type circularMean struct {
	sin, cos float64
	n        int
}

func (c *circularMean) add(deg float64) {
	rad := deg * math.Pi / 180
	c.sin += math.Sin(rad)
	c.cos += math.Cos(rad)
	c.n++
}

func (c circularMean) measure() Measure {
	if c.n == 0 {
		return Measure{}
	}
	deg := math.Atan2(c.sin, c.cos) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	m := NewMeasure(deg)
	if v, _ := m.Value(); v >= 360 {
		m = NewMeasure(0)
	}
	return m
}

type total struct {
	sum float64
	n   int
}

func (t *total) add(v float64) {
	t.sum += v
	t.n++
}

func (t total) measure() Measure {
	if t.n == 0 {
		return Measure{}
	}
	return NewMeasure(t.sum)
}

type hourBucket struct {
	start    time.Time
	temp     mean
	humidity mean
	wind     mean
	dir      circularMean
	precip   total
}

// AggregateHourly buckets valid readings by local clock hour. Temperature,
// humidity and wind speed are averaged, wind direction is averaged as an
// angle and precipitation is summed. Points are ordered by time and fields
// with no readings are null.
func AggregateHourly(sets []ChannelDataSet) []HourlyForecastPoint {
	buckets := make(map[string]*hourBucket)

	for _, set := range sets {
		f, ok := channelFields[set.ChannelID]
		if !ok {
			continue
		}
		for _, r := range set.Readings {
			if !r.Valid {
				continue
			}
			t := r.Time
			start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
			// Key on the local hour with its offset so a repeated DST hour
			// stays separate.
			key := start.Format("2006-01-02T15Z07:00")
			b, ok := buckets[key]
			if !ok {
				b = &hourBucket{start: start}
				buckets[key] = b
			}
			switch f {
			case fieldTemperature:
				b.temp.add(r.Value)
			case fieldHumidity:
				b.humidity.add(r.Value)
			case fieldWindSpeed:
				b.wind.add(r.Value)
			case fieldWindDirection:
				b.dir.add(r.Value)
			case fieldPrecipitation:
				b.precip.add(r.Value)
			}
		}
	}

	ordered := make([]*hourBucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start.Before(ordered[j].start) })

	points := make([]HourlyForecastPoint, 0, len(ordered))
	for _, b := range ordered {
		points = append(points, HourlyForecastPoint{
			Time:          b.start,
			Temperature:   b.temp.measure(),
			Humidity:      b.humidity.measure(),
			WindSpeed:     b.wind.measure(),
			WindDirection: b.dir.measure(),
			Precipitation: b.precip.measure(),
		})
	}
	return points
}

type dayBucket struct {
	date      string
	tempMin   float64
	tempMax   float64
	tempN     int
	current   float64
	currentAt time.Time
	humidity  mean
	wind      mean
	precip    total
}

// AggregateDaily buckets valid readings by local calendar date. Temperature
// yields min, max and the value of the latest reading of the day; humidity
// and wind speed are averaged and precipitation is summed.
func AggregateDaily(sets []ChannelDataSet) []DailyForecastPoint {
	buckets := make(map[string]*dayBucket)

	for _, set := range sets {
		f, ok := channelFields[set.ChannelID]
		if !ok {
			continue
		}
		for _, r := range set.Readings {
			if !r.Valid {
				continue
			}
			date := r.Time.Format(dateLayout)
			b, ok := buckets[date]
			if !ok {
				b = &dayBucket{date: date}
				buckets[date] = b
			}
			switch f {
			case fieldTemperature:
				if b.tempN == 0 || r.Value < b.tempMin {
					b.tempMin = r.Value
				}
				if b.tempN == 0 || r.Value > b.tempMax {
					b.tempMax = r.Value
				}
				if b.tempN == 0 || !r.Time.Before(b.currentAt) {
					b.current = r.Value
					b.currentAt = r.Time
				}
				b.tempN++
			case fieldHumidity:
				b.humidity.add(r.Value)
			case fieldWindSpeed:
				b.wind.add(r.Value)
			case fieldPrecipitation:
				b.precip.add(r.Value)
			}
		}
	}

	dates := make([]string, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]DailyForecastPoint, 0, len(dates))
	for _, d := range dates {
		b := buckets[d]
		p := DailyForecastPoint{
			Date:         b.date,
			HumidityAvg:  b.humidity.measure(),
			WindSpeedAvg: b.wind.measure(),
			PrecipTotal:  b.precip.measure(),
		}
		if b.tempN > 0 {
			p.TempMin = NewMeasure(b.tempMin)
			p.TempMax = NewMeasure(b.tempMax)
			p.TempCurrent = NewMeasure(b.current)
		}
		points = append(points, p)
	}
	return points
}

// LatestReadings picks the newest valid reading of every known channel. ok is
// false when no channel has a valid reading.
func LatestReadings(stationID int, sets []ChannelDataSet) (obs LatestObservation, ok bool) {
	obs.StationID = stationID
	newest := make(map[field]time.Time)

	for _, set := range sets {
		f, known := channelFields[set.ChannelID]
		if !known {
			continue
		}
		for _, r := range set.Readings {
			if !r.Valid {
				continue
			}
			if at, seen := newest[f]; seen && r.Time.Before(at) {
				continue
			}
			newest[f] = r.Time
			m := NewMeasure(r.Value)
			switch f {
			case fieldTemperature:
				obs.Temperature = m
			case fieldHumidity:
				obs.Humidity = m
			case fieldWindSpeed:
				obs.WindSpeed = m
			case fieldWindDirection:
				obs.WindDirection = m
			case fieldPrecipitation:
				obs.Precipitation = m
			}
			if r.Time.After(obs.Time) {
				obs.Time = r.Time
			}
			ok = true
		}
	}
	return obs, ok
}

// latestTemperature returns the most recent valid temperature reading.
func latestTemperature(sets []ChannelDataSet) (float64, bool) {
	obs, ok := LatestReadings(0, sets)
	if !ok {
		return 0, false
	}
	return obs.Temperature.Value()
}
