package feeds

import (
	"regexp"
	"strconv"
	"time"

	"github.com/k3a/html2text"

	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/weather"
)

var (
	datePattern      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	tempRangePattern = regexp.MustCompile(`(?i)temp(?:eratures?|\.)?\s*:?\s*(-?\d{1,2}(?:\.\d)?)\s*(?:-|–|to)\s*(-?\d{1,2}(?:\.\d)?)`)
	minMaxPattern    = regexp.MustCompile(`(?i)min(?:imum)?(?:\s+temp(?:erature)?)?\s*:?\s*(-?\d{1,2}(?:\.\d)?)\D{0,30}?max(?:imum)?(?:\s+temp(?:erature)?)?\s*:?\s*(-?\d{1,2}(?:\.\d)?)`)
	humidityPattern  = regexp.MustCompile(`(?i)humidity\D{0,20}?(\d{1,3})\s*%?\s*(?:-|–|to)\s*(\d{1,3})\s*%`)
	windPattern      = regexp.MustCompile(`(?i)winds?\D{0,40}?(\d{1,3})\s*(?:-|–|to)\s*(\d{1,3})\s*km/h`)
)

// ExtractDaily reads day-by-day forecasts out of a feed item's HTML body.
// Each dd/mm[/yyyy] date opens a section that runs to the next date; sections
// without any recognised value are dropped. ref, usually the item's publish
// time, supplies the year when a date omits it.
func ExtractDaily(body string, ref time.Time) []weather.DailyForecastPoint {
	text := html2text.HTML2Text(body)
	locs := datePattern.FindAllStringSubmatchIndex(text, -1)

	seen := make(map[string]bool)
	var points []weather.DailyForecastPoint
	for i, loc := range locs {
		date, ok := resolveDate(text, loc, ref)
		if !ok {
			continue
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		key := date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		p, ok := extractSection(text[loc[1]:end])
		if !ok {
			continue
		}
		p.Date = key
		seen[key] = true
		points = append(points, p)
	}
	return points
}

func resolveDate(text string, loc []int, ref time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(text[loc[2]:loc[3]])
	month, _ := strconv.Atoi(text[loc[4]:loc[5]])
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	year := ref.Year()
	explicit := loc[6] >= 0
	if explicit {
		year, _ = strconv.Atoi(text[loc[6]:loc[7]])
		if year < 100 {
			year += 2000
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false // e.g. 31/02
	}
	// A yearless January date in a December feed belongs to next year.
	if !explicit && t.Before(ref.AddDate(0, -6, 0)) {
		t = t.AddDate(1, 0, 0)
	}
	return t, true
}

func extractSection(section string) (weather.DailyForecastPoint, bool) {
	var p weather.DailyForecastPoint
	found := false

	if common.HasAnyFold(section, "temp", "min", "max") {
		lo, hi, ok := matchPair(tempRangePattern, section)
		if !ok {
			lo, hi, ok = matchPair(minMaxPattern, section)
		}
		if ok {
			if lo > hi {
				lo, hi = hi, lo
			}
			p.TempMin = weather.NewMeasure(lo)
			p.TempMax = weather.NewMeasure(hi)
			found = true
		}
	}
	if lo, hi, ok := matchPair(humidityPattern, section); ok {
		p.HumidityAvg = weather.NewMeasure((lo + hi) / 2)
		found = true
	}
	if lo, hi, ok := matchPair(windPattern, section); ok {
		// km/h to m/s, the unit stations report in.
		p.WindSpeedAvg = weather.NewMeasure((lo + hi) / 2 / 3.6)
		found = true
	}
	return p, found
}

func matchPair(re *regexp.Regexp, s string) (float64, float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[2], 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
