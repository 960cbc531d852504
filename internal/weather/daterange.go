package weather

import "time"

// Direction anchors a date window on today.
type Direction int

const (
	// Backward windows end today; used for historical observations.
	Backward Direction = iota
	// Forward windows start today; used for forecasts.
	Forward
)

const (
	dateLayout         = "2006-01-02"
	upstreamDateLayout = "2006/01/02"
)

// DateRange returns the inclusive calendar-date window of p anchored on the
// day of now, in now's location. Both bounds are at midnight.
func DateRange(p Period, dir Direction, now time.Time) (from, to time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	span := p.Days() - 1
	if dir == Forward {
		return today, today.AddDate(0, 0, span)
	}
	return today.AddDate(0, 0, -span), today
}

// DaysInRange counts calendar days from from to to, both inclusive. It works
// on civil dates so DST shifts and month ends do not skew the count.
func DaysInRange(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// ExpectedPeriods is the number of points a full-coverage forecast for p has
// over the window: hours for hourly periods, days otherwise.
func ExpectedPeriods(p Period, from, to time.Time) int {
	days := DaysInRange(from, to)
	if p.Hourly() {
		return days * 24
	}
	return days
}

// UpstreamDate formats t the way the station API expects dates.
func UpstreamDate(t time.Time) string {
	return t.Format(upstreamDateLayout)
}
