package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/ims-weather/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// flakyDurable wraps a real tier and fails the operations selected by the test.
type flakyDurable struct {
	Durable
	failGet bool
	failSet bool
}

var errDisk = errors.New("disk on fire")

func (f *flakyDurable) Get(ctx context.Context, key string) (store.Record, error) {
	if f.failGet {
		return store.Record{}, errDisk
	}
	return f.Durable.Get(ctx, key)
}

func (f *flakyDurable) Set(ctx context.Context, key string, rec store.Record) error {
	if f.failSet {
		return errDisk
	}
	return f.Durable.Set(ctx, key, rec)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) (*Cache, *fakeClock, *store.FileStore) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	c := New(store.NewMemoryStore(), fs, discardLogger(), WithClock(clock.Now))
	return c, clock, fs
}

type station struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestKey_Deterministic(t *testing.T) {
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6)

	tests := []struct {
		name string
		kind Kind
		p    Params
		want string
	}{
		{"stations ignores params", KindStations, Params{StationID: 9, Period: "short"}, "stations"},
		{"station", KindStation, Params{StationID: 178}, "station:178"},
		{"channel", KindChannelData, Params{StationID: 178, ChannelID: 7, From: from, To: to}, "channel:178:7:2026-10-16:2026-10-22"},
		{"forecast ignores channel", KindForecast, Params{StationID: 178, ChannelID: 7, Period: "medium", From: from, To: to}, "forecast:178:medium:2026-10-16:2026-10-22"},
		{"latest is per day", KindLatest, Params{StationID: 178, From: from, To: from}, "latest:178:2026-10-16"},
		{"latest next day", KindLatest, Params{StationID: 178, From: to}, "latest:178:2026-10-22"},
		{"observations", KindObservations, Params{StationID: 2, Period: "short", From: from, To: to}, "observations:2:short:2026-10-16:2026-10-22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.kind, tt.p)
			if got != tt.want {
				t.Errorf("Key = %q, want %q", got, tt.want)
			}
			if again := Key(tt.kind, tt.p); again != got {
				t.Errorf("Key not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestGet_AfterSet(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	want := []station{{ID: 2, Name: "AVNE ETAN"}}

	if err := c.Set(ctx, KindStations, Params{}, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := Get[[]station](ctx, c, KindStations, Params{})
	if !ok {
		t.Fatal("Get after Set returned !ok")
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGet_ExpiryBoundary(t *testing.T) {
	c, clock, _ := newTestCache(t)
	ctx := context.Background()
	p := Params{StationID: 178}

	if err := c.Set(ctx, KindStation, p, station{ID: 178}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(48 * time.Hour)
	if _, ok := Get[station](ctx, c, KindStation, p); !ok {
		t.Fatal("entry exactly at its duration should still be valid")
	}

	clock.Advance(time.Millisecond)
	if _, ok := Get[station](ctx, c, KindStation, p); ok {
		t.Fatal("entry past its duration should be absent")
	}

	calls := 0
	got, err := Fetch(ctx, c, KindStation, p, func(context.Context) (station, error) {
		calls++
		return station{ID: 178, Name: "TEL AVIV COAST"}, nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 1 || got.Name != "TEL AVIV COAST" {
		t.Errorf("Fetch after expiry: calls=%d got=%+v", calls, got)
	}
	if _, ok := Get[station](ctx, c, KindStation, p); !ok {
		t.Error("entry should be repopulated after Fetch")
	}
}

func TestGet_ExpiredDurableEntryIsDeleted(t *testing.T) {
	c, clock, fs := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, KindLatest, Params{StationID: 2}, 14.5); err != nil {
		t.Fatal(err)
	}
	clock.Advance(11 * time.Minute)

	if _, ok := Get[float64](ctx, c, KindLatest, Params{StationID: 2}); ok {
		t.Fatal("expired entry returned")
	}
	if _, err := fs.Get(ctx, Key(KindLatest, Params{StationID: 2})); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired durable entry not evicted: err = %v", err)
	}
}

func TestGet_WithTTLOverride(t *testing.T) {
	c, clock, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, KindStations, Params{}, []station{{ID: 1}}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)

	if _, ok := Get[[]station](ctx, c, KindStations, Params{}, WithTTL(time.Hour)); ok {
		t.Error("override shorter than age should miss")
	}
}

func TestGet_DurableHitRepopulatesMemory(t *testing.T) {
	c, clock, fs := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, KindStations, Params{}, []station{{ID: 5, Name: "HAIFA"}}); err != nil {
		t.Fatal(err)
	}

	// A fresh process shares only the durable tier.
	restarted := New(store.NewMemoryStore(), fs, discardLogger(), WithClock(clock.Now))
	got, ok := Get[[]station](ctx, restarted, KindStations, Params{})
	if !ok {
		t.Fatal("durable tier did not survive restart")
	}
	if len(got) != 1 || got[0].Name != "HAIFA" {
		t.Errorf("Get = %+v", got)
	}

	st := restarted.Stats(ctx)
	if st.DurableHits != 1 || st.MemoryEntries != 1 {
		t.Errorf("Stats after durable hit = %+v, want 1 durable hit and 1 memory entry", st)
	}

	if _, ok := Get[[]station](ctx, restarted, KindStations, Params{}); !ok {
		t.Fatal("second Get missed")
	}
	if st := restarted.Stats(ctx); st.MemoryHits != 1 {
		t.Errorf("MemoryHits = %d, want 1", st.MemoryHits)
	}
}

func TestFetch_ProducerErrorNotCached(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("upstream down")

	_, err := Fetch(ctx, c, KindStations, Params{}, func(context.Context) ([]station, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch err = %v, want %v", err, boom)
	}
	if _, ok := Get[[]station](ctx, c, KindStations, Params{}); ok {
		t.Error("producer failure was cached")
	}
	if st := c.Stats(ctx); st.ProducerErrors != 1 || st.MemoryEntries != 0 || st.DurableEntries != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestFetch_EmptyResultCached(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	produce := func(context.Context) ([]station, error) {
		calls++
		return []station{}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, KindStations, Params{}, produce)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("got %d stations, want 0", len(got))
		}
	}
	if calls != 1 {
		t.Errorf("producer calls = %d, want 1", calls)
	}
}

func TestDurableErrorsTreatedAsMiss(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	flaky := &flakyDurable{Durable: fs, failGet: true, failSet: true}
	c := New(store.NewMemoryStore(), flaky, discardLogger())
	ctx := context.Background()

	calls := 0
	produce := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}

	got, err := Fetch(ctx, c, KindStation, Params{StationID: 7}, produce)
	if err != nil {
		t.Fatalf("Fetch with failing durable tier: %v", err)
	}
	if got != 7 || calls != 1 {
		t.Errorf("got=%d calls=%d", got, calls)
	}

	// The memory tier still serves the value.
	if _, err := Fetch(ctx, c, KindStation, Params{StationID: 7}, produce); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("producer calls = %d, want 1", calls)
	}
}

func TestClearAndStats(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	for id := 1; id <= 3; id++ {
		if err := c.Set(ctx, KindStation, Params{StationID: id}, station{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	st := c.Stats(ctx)
	if st.MemoryEntries != 3 || st.DurableEntries != 3 {
		t.Fatalf("Stats = %+v, want 3/3", st)
	}
	if st.DurableBytes <= 0 {
		t.Errorf("DurableBytes = %d, want > 0", st.DurableBytes)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st = c.Stats(ctx)
	if st.MemoryEntries != 0 || st.DurableEntries != 0 {
		t.Errorf("Stats after Clear = %+v", st)
	}
	if _, ok := Get[station](ctx, c, KindStation, Params{StationID: 1}); ok {
		t.Error("Get after Clear returned a value")
	}
}

func TestMemoryOnlyCache(t *testing.T) {
	c := New(nil, nil, nil)
	ctx := context.Background()

	if err := c.Set(ctx, KindStations, Params{}, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := Get[[]string](ctx, c, KindStations, Params{}); !ok {
		t.Error("memory-only cache lost value")
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.Stats(ctx); st.MemoryEntries != 0 {
		t.Errorf("MemoryEntries = %d", st.MemoryEntries)
	}
}
