package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/ims-weather/internal/geo"
	"github.com/i474232898/ims-weather/internal/logging"
	"github.com/i474232898/ims-weather/internal/weather"
)

// IMSClient talks to the IMS Envista station API. It implements
// weather.StationClient and does no caching.
type IMSClient struct {
	baseURL string
	token   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewIMSClient returns a client for the API rooted at baseURL, for example
// https://api.ims.gov.il/v1/envista.
func NewIMSClient(client *http.Client, baseURL, token string, logger *slog.Logger) *IMSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("ims"),
		logger:  logging.Component(logger, "ims"),
	}
}

type imsMonitor struct {
	ChannelID int    `json:"channelId"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Units     string `json:"units"`
}

type imsStation struct {
	StationID int    `json:"stationId"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Location  struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"location"`
	Active   bool         `json:"active"`
	RegionID int          `json:"regionId"`
	Monitors []imsMonitor `json:"monitors"`
}

func (s imsStation) toStation() (weather.Station, bool) {
	if s.Location.Latitude == nil || s.Location.Longitude == nil {
		return weather.Station{}, false
	}
	st := weather.Station{
		ID:        s.StationID,
		Name:      strings.TrimSpace(s.Name),
		ShortName: strings.TrimSpace(s.ShortName),
		Location:  geo.Coordinate{Latitude: *s.Location.Latitude, Longitude: *s.Location.Longitude},
		Active:    s.Active,
		RegionID:  s.RegionID,
		Channels:  make([]weather.Channel, 0, len(s.Monitors)),
	}
	for _, m := range s.Monitors {
		st.Channels = append(st.Channels, weather.Channel{
			ID:     m.ChannelID,
			Name:   m.Name,
			Units:  m.Units,
			Active: m.Active,
		})
	}
	return st, true
}

type imsDataResponse struct {
	StationID int `json:"stationId"`
	Data      []struct {
		Datetime string `json:"datetime"`
		Channels []struct {
			ID     int     `json:"id"`
			Name   string  `json:"name"`
			Value  float64 `json:"value"`
			Status int     `json:"status"`
			Valid  bool    `json:"valid"`
		} `json:"channels"`
	} `json:"data"`
}

// Stations lists every station that reports a location.
func (c *IMSClient) Stations(ctx context.Context) ([]weather.Station, error) {
	var payload []imsStation
	found, err := c.getJSON(ctx, "stations", "/stations", nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("ims stations: %w", err)
	}
	if !found {
		return []weather.Station{}, nil
	}

	stations := make([]weather.Station, 0, len(payload))
	for _, s := range payload {
		st, ok := s.toStation()
		if !ok {
			c.logger.Debug("skipping station without location", "station", s.StationID)
			continue
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Station fetches one station's metadata. Unknown ids yield an error
// matching both ErrNotFound and weather.ErrStationNotFound.
func (c *IMSClient) Station(ctx context.Context, id int) (weather.Station, error) {
	var payload imsStation
	found, err := c.getJSON(ctx, "station", "/stations/"+strconv.Itoa(id), nil, &payload)
	if errors.Is(err, ErrNotFound) {
		found, err = false, nil
	}
	if err != nil {
		return weather.Station{}, fmt.Errorf("ims station %d: %w", id, err)
	}
	if !found {
		return weather.Station{}, fmt.Errorf("ims station %d: %w: %w", id, weather.ErrStationNotFound, ErrNotFound)
	}
	st, ok := payload.toStation()
	if !ok {
		return weather.Station{}, fmt.Errorf("ims station %d has no location", id)
	}
	return st, nil
}

// ChannelData fetches one channel of a station over the inclusive date range.
// An empty upstream answer yields an empty set, not an error.
func (c *IMSClient) ChannelData(ctx context.Context, stationID, channelID int, from, to time.Time) (weather.ChannelDataSet, error) {
	set := weather.ChannelDataSet{StationID: stationID, ChannelID: channelID, Readings: []weather.ChannelReading{}}

	q := url.Values{}
	q.Set("from", weather.UpstreamDate(from))
	q.Set("to", weather.UpstreamDate(to))
	path := fmt.Sprintf("/stations/%d/data/%d", stationID, channelID)

	var payload imsDataResponse
	found, err := c.getJSON(ctx, "channel_data", path, q, &payload)
	if err != nil {
		return weather.ChannelDataSet{}, fmt.Errorf("ims data station %d channel %d: %w", stationID, channelID, err)
	}
	if !found {
		return set, nil
	}

	for _, row := range payload.Data {
		ts, err := time.Parse(time.RFC3339, row.Datetime)
		if err != nil {
			c.logger.Debug("skipping row with bad datetime", "station", stationID, "datetime", row.Datetime)
			continue
		}
		for _, ch := range row.Channels {
			if ch.ID != channelID {
				continue
			}
			set.Readings = append(set.Readings, weather.ChannelReading{
				ChannelID: channelID,
				Time:      ts,
				Value:     ch.Value,
				Valid:     ch.Valid,
			})
		}
	}
	return set, nil
}

// getJSON issues an authenticated GET and decodes the body into out. found is
// false when the upstream answered 204 No Content.
func (c *IMSClient) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) (found bool, err error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "ApiToken "+c.token)
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, endpoint, buildRequest)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
