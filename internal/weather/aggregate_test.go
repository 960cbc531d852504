package weather

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

var jerusalemTZ = time.FixedZone("IST", 2*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, jerusalemTZ)
}

func series(channel int, readings ...ChannelReading) ChannelDataSet {
	for i := range readings {
		readings[i].ChannelID = channel
		readings[i].Valid = true
	}
	return ChannelDataSet{StationID: 178, ChannelID: channel, Readings: readings}
}

func reading(t time.Time, v float64) ChannelReading {
	return ChannelReading{Time: t, Value: v}
}

func TestAggregateDaily_Temperature(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelTemperature,
			reading(at(16, 6, 0), 14),
			reading(at(16, 14, 0), 22),
			reading(at(16, 20, 0), 18),
		),
	}

	days := AggregateDaily(sets)
	if len(days) != 1 {
		t.Fatalf("got %d days, want 1", len(days))
	}
	d := days[0]
	if d.Date != "2026-10-16" {
		t.Errorf("Date = %q", d.Date)
	}
	if d.TempMin.String() != "14.0" || d.TempMax.String() != "22.0" || d.TempCurrent.String() != "18.0" {
		t.Errorf("min/max/current = %s/%s/%s, want 14.0/22.0/18.0", d.TempMin, d.TempMax, d.TempCurrent)
	}
	if d.HumidityAvg.Valid() || d.WindSpeedAvg.Valid() || d.PrecipTotal.Valid() {
		t.Errorf("fields without readings should be null: %+v", d)
	}
}

func TestAggregateDaily_CurrentIsLatestNotLast(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelTemperature,
			reading(at(16, 20, 0), 18),
			reading(at(16, 6, 0), 14),
		),
	}
	d := AggregateDaily(sets)[0]
	if d.TempCurrent.String() != "18.0" {
		t.Errorf("TempCurrent = %s, want 18.0 (latest timestamp)", d.TempCurrent)
	}
}

func TestAggregateHourly_Mean(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelTemperature,
			reading(at(16, 10, 0), 20),
			reading(at(16, 10, 50), 22),
		),
	}

	hours := AggregateHourly(sets)
	if len(hours) != 1 {
		t.Fatalf("got %d hours, want 1", len(hours))
	}
	if got := hours[0].Temperature.String(); got != "21.0" {
		t.Errorf("Temperature = %s, want 21.0", got)
	}
	if !hours[0].Time.Equal(at(16, 10, 0)) {
		t.Errorf("Time = %v, want start of hour", hours[0].Time)
	}
}

func TestAggregateHourly_HalfHourOffset(t *testing.T) {
	india := time.FixedZone("IST+0530", 5*60*60+30*60)
	sets := []ChannelDataSet{
		series(ChannelTemperature,
			reading(time.Date(2026, time.October, 16, 10, 40, 0, 0, india), 20),
			reading(time.Date(2026, time.October, 16, 10, 10, 0, 0, india), 22),
		),
	}

	hours := AggregateHourly(sets)
	if len(hours) != 1 {
		t.Fatalf("got %d hours, want 1 local hour", len(hours))
	}
	want := time.Date(2026, time.October, 16, 10, 0, 0, 0, india)
	if !hours[0].Time.Equal(want) {
		t.Errorf("Time = %v, want %v", hours[0].Time, want)
	}
	if got := hours[0].Temperature.String(); got != "21.0" {
		t.Errorf("Temperature = %s, want 21.0", got)
	}
}

func TestAggregate_RepeatableAndEmpty(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelTemperature, reading(at(16, 9, 0), 18), reading(at(16, 14, 20), 25), reading(at(17, 8, 0), 17)),
		series(ChannelWindDirection, reading(at(16, 9, 0), 350), reading(at(16, 9, 30), 10), reading(at(17, 8, 0), 90)),
		series(ChannelRain, reading(at(16, 14, 0), 0.2), reading(at(16, 14, 45), 0.3)),
		series(ChannelHumidity, reading(at(16, 9, 0), 55)),
	}

	if a, b := AggregateHourly(sets), AggregateHourly(sets); !reflect.DeepEqual(a, b) {
		t.Errorf("AggregateHourly differs between runs:\n%+v\n%+v", a, b)
	}
	if a, b := AggregateDaily(sets), AggregateDaily(sets); !reflect.DeepEqual(a, b) {
		t.Errorf("AggregateDaily differs between runs:\n%+v\n%+v", a, b)
	}

	for _, in := range [][]ChannelDataSet{nil, {}} {
		if got := AggregateHourly(in); got == nil || len(got) != 0 {
			t.Errorf("AggregateHourly(%v) = %#v, want empty non-nil", in, got)
		}
		if got := AggregateDaily(in); got == nil || len(got) != 0 {
			t.Errorf("AggregateDaily(%v) = %#v, want empty non-nil", in, got)
		}
	}
}

func TestAggregateHourly_FieldsAndOrdering(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelRain, reading(at(16, 11, 0), 0.4), reading(at(16, 11, 30), 0.6)),
		series(ChannelWindDirection, reading(at(16, 11, 0), 350), reading(at(16, 11, 10), 10)),
		series(ChannelHumidity, reading(at(16, 9, 0), 60), reading(at(16, 11, 0), 70)),
		series(ChannelWindSpeed, reading(at(16, 11, 0), 3.33)),
	}

	hours := AggregateHourly(sets)
	if len(hours) != 2 {
		t.Fatalf("got %d hours, want 2", len(hours))
	}
	if !hours[0].Time.Before(hours[1].Time) {
		t.Fatalf("hours not ordered: %v, %v", hours[0].Time, hours[1].Time)
	}

	first, second := hours[0], hours[1]
	if first.Humidity.String() != "60.0" || first.Precipitation.Valid() {
		t.Errorf("09:00 = %+v", first)
	}
	if second.Precipitation.String() != "1.0" {
		t.Errorf("Precipitation = %s, want summed 1.0", second.Precipitation)
	}
	if second.WindDirection.String() != "0.0" {
		t.Errorf("WindDirection = %s, want circular mean 0.0", second.WindDirection)
	}
	if second.WindSpeed.String() != "3.3" {
		t.Errorf("WindSpeed = %s, want 3.3", second.WindSpeed)
	}
	if second.Temperature.Valid() {
		t.Errorf("Temperature should be null, got %s", second.Temperature)
	}
}

func TestAggregate_SkipsInvalidAndUnknown(t *testing.T) {
	sets := []ChannelDataSet{
		{ChannelID: ChannelTemperature, Readings: []ChannelReading{
			{ChannelID: ChannelTemperature, Time: at(16, 10, 0), Value: -9999, Valid: false},
		}},
		series(99, reading(at(16, 10, 0), 1)),
	}
	if got := AggregateHourly(sets); len(got) != 0 {
		t.Errorf("AggregateHourly = %+v, want empty", got)
	}
	if got := AggregateDaily(sets); len(got) != 0 {
		t.Errorf("AggregateDaily = %+v, want empty", got)
	}
	if got := AggregateDaily(nil); got == nil {
		t.Error("AggregateDaily(nil) should be an empty slice, not nil")
	}
}

func TestAggregateDaily_SplitsOnLocalDate(t *testing.T) {
	sets := []ChannelDataSet{
		series(ChannelTemperature,
			reading(at(16, 23, 50), 15),
			reading(at(17, 0, 10), 12),
		),
	}
	days := AggregateDaily(sets)
	if len(days) != 2 || days[0].Date != "2026-10-16" || days[1].Date != "2026-10-17" {
		t.Fatalf("days = %+v", days)
	}
}

func TestMeasureJSON(t *testing.T) {
	p := DailyForecastPoint{Date: "2026-10-16", TempMin: NewMeasure(14), TempMax: NewMeasure(-0.04)}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"date":"2026-10-16","tempMin":"14.0","tempMax":"0.0","tempCurrent":null,"humidityAvg":null,"windSpeedAvg":null,"precipTotal":null}`
	if string(b) != want {
		t.Errorf("Marshal = %s\nwant %s", b, want)
	}

	var back DailyForecastPoint
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != p {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}

	var m Measure
	if err := json.Unmarshal([]byte("21.46"), &m); err != nil || m.String() != "21.5" {
		t.Errorf("Unmarshal number = %s, %v", m, err)
	}
}
