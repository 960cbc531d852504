package cache

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the domain type of a cached value. It selects both the key layout
// and the default expiry.
type Kind string

const (
	KindStations     Kind = "stations"
	KindStation      Kind = "station"
	KindChannelData  Kind = "channel"
	KindObservations Kind = "observations"
	KindForecast     Kind = "forecast"
	KindLatest       Kind = "latest"
)

// DefaultDurations are the expiry durations used when no override is given.
var DefaultDurations = map[Kind]time.Duration{
	KindStations:     48 * time.Hour,
	KindStation:      48 * time.Hour,
	KindChannelData:  24 * time.Hour,
	KindObservations: 24 * time.Hour,
	KindForecast:     24 * time.Hour,
	KindLatest:       10 * time.Minute,
}

// fallbackDuration applies to kinds missing from the duration table.
const fallbackDuration = time.Hour

// Params carries the parameters a key may be derived from. Each kind only
// reads the fields relevant to it.
type Params struct {
	StationID int
	ChannelID int
	Period    string
	From      time.Time
	To        time.Time
}

const keyDateLayout = "2006-01-02"

// Key derives the cache key for kind and p. Equal kinds and equal relevant
// params always produce the same key.
func Key(kind Kind, p Params) string {
	parts := []string{string(kind)}

	switch kind {
	case KindStations:
	case KindStation:
		parts = append(parts, strconv.Itoa(p.StationID))
	case KindLatest:
		parts = append(parts, strconv.Itoa(p.StationID), p.From.Format(keyDateLayout))
	case KindChannelData:
		parts = append(parts,
			strconv.Itoa(p.StationID),
			strconv.Itoa(p.ChannelID),
			p.From.Format(keyDateLayout),
			p.To.Format(keyDateLayout),
		)
	case KindObservations, KindForecast:
		parts = append(parts,
			strconv.Itoa(p.StationID),
			p.Period,
			p.From.Format(keyDateLayout),
			p.To.Format(keyDateLayout),
		)
	default:
		parts = append(parts,
			strconv.Itoa(p.StationID),
			strconv.Itoa(p.ChannelID),
			p.Period,
			p.From.Format(keyDateLayout),
			p.To.Format(keyDateLayout),
		)
	}

	return strings.Join(parts, ":")
}
