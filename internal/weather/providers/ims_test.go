package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/ims-weather/internal/weather"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIMSClient(serverURL string) *IMSClient {
	c := NewIMSClient(&http.Client{Timeout: 2 * time.Second}, serverURL+"/", "secret", testLogger())
	c.httpCfg.Backoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	return c
}

const stationsJSON = `[
  {"stationId": 178, "name": "TEL AVIV COAST", "shortName": "TLV",
   "location": {"latitude": 32.058, "longitude": 34.7595}, "active": true, "regionId": 2,
   "monitors": [
     {"channelId": 7, "name": "TD", "active": true, "units": "degC"},
     {"channelId": 8, "name": "RH", "active": false, "units": "%"}
   ]},
  {"stationId": 2, "name": "NO LOCATION", "location": {"latitude": null, "longitude": null}, "active": true}
]`

func TestIMSClient_Stations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations" {
			t.Errorf("path = %s, want /stations", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "ApiToken secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stationsJSON))
	}))
	defer server.Close()

	stations, err := newTestIMSClient(server.URL).Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if len(stations) != 1 {
		t.Fatalf("got %d stations, want 1 (the one without location is skipped)", len(stations))
	}
	s := stations[0]
	if s.ID != 178 || s.Name != "TEL AVIV COAST" || s.Location.Latitude != 32.058 || s.RegionID != 2 {
		t.Errorf("station = %+v", s)
	}
	if len(s.Channels) != 2 || s.Channels[0].ID != 7 || s.Channels[1].Active {
		t.Errorf("channels = %+v", s.Channels)
	}
}

func TestIMSClient_ChannelData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations/178/data/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("from") != "2026/10/10" || r.URL.Query().Get("to") != "2026/10/16" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"stationId":178,"data":[
			{"datetime":"2026-10-16T10:00:00+03:00","channels":[{"id":7,"name":"TD","value":24.3,"status":1,"valid":true}]},
			{"datetime":"2026-10-16T10:10:00+03:00","channels":[{"id":7,"name":"TD","value":-9999,"status":2,"valid":false}]},
			{"datetime":"garbage","channels":[{"id":7,"name":"TD","value":1,"status":1,"valid":true}]}
		]}`))
	}))
	defer server.Close()

	from := time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	set, err := newTestIMSClient(server.URL).ChannelData(context.Background(), 178, 7, from, to)
	if err != nil {
		t.Fatalf("ChannelData: %v", err)
	}
	if set.StationID != 178 || set.ChannelID != 7 || len(set.Readings) != 2 {
		t.Fatalf("set = %+v", set)
	}
	r := set.Readings[0]
	if r.Value != 24.3 || !r.Valid || r.Time.Hour() != 10 {
		t.Errorf("reading = %+v, want local hour kept", r)
	}
	if set.Readings[1].Valid {
		t.Error("invalid upstream reading marked valid")
	}
}

func TestIMSClient_NoContentIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	set, err := newTestIMSClient(server.URL).ChannelData(context.Background(), 178, 7, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("ChannelData: %v", err)
	}
	if set.Readings == nil || len(set.Readings) != 0 {
		t.Errorf("readings = %#v, want empty slice", set.Readings)
	}
}

func TestIMSClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(stationsJSON))
	}))
	defer server.Close()

	stations, err := newTestIMSClient(server.URL).Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if len(stations) != 1 || calls.Load() != 3 {
		t.Errorf("stations %d after %d calls", len(stations), calls.Load())
	}
}

func TestIMSClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestIMSClient(server.URL).Stations(context.Background())
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", calls.Load())
	}
}

func TestIMSClient_ClientErrorsNotRetried(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, errUnexpected},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(tt.status)
		}))

		_, err := newTestIMSClient(server.URL).Station(context.Background(), 1)
		server.Close()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.wantErr)
		}
		if notFound := errors.Is(err, weather.ErrStationNotFound); notFound != (tt.status == http.StatusNotFound) {
			t.Errorf("status %d: errors.Is(err, ErrStationNotFound) = %v", tt.status, notFound)
		}
		if calls.Load() != 1 {
			t.Errorf("status %d: calls = %d, want 1", tt.status, calls.Load())
		}
	}
}

func TestIMSClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestIMSClient(server.URL)
	c.httpCfg.Backoff.MaxRetries = 0
	for i := 0; i < 6; i++ {
		_, _ = c.Stations(context.Background())
	}
	before := calls.Load()

	_, err := c.Stations(context.Background())
	if !errors.Is(err, errCircuitOpen) {
		t.Fatalf("err = %v, want circuit open", err)
	}
	if calls.Load() != before {
		t.Error("request reached the server while the circuit was open")
	}
}

func TestIMSClient_ImplementsStationClient(t *testing.T) {
	var _ weather.StationClient = (*IMSClient)(nil)
}

func TestFeedClient_FetchRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss/forecast_4.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	c := NewFeedClient(server.Client(), server.URL+"/rss/forecast_%d.xml")
	c.httpCfg.Backoff.InitialInterval = time.Millisecond

	body, err := c.FetchRegion(context.Background(), 4)
	if err != nil {
		t.Fatalf("FetchRegion: %v", err)
	}
	if string(body) != "<rss></rss>" {
		t.Errorf("body = %q", body)
	}
	if _, err := c.FetchRegion(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing region err = %v", err)
	}
}
