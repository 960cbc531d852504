// Package cache implements the two-level (memory + durable) cache that sits in
// front of every expensive upstream call.
//
// Lookups check the in-process tier first, then the durable tier, and only on
// a total miss run the caller's producer. Expiry is evaluated lazily at read
// time against the duration configured for the entry's kind. Durable tier
// failures never fail a request: they are logged and treated as misses.
// Concurrent identical misses may both run the producer; the last write wins.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/i474232898/ims-weather/internal/logging"
	"github.com/i474232898/ims-weather/internal/metrics"
	"github.com/i474232898/ims-weather/internal/store"
)

// Durable is the contract of the persistent tier. Get returns
// store.ErrNotFound when the key is absent.
type Durable interface {
	Get(ctx context.Context, key string) (store.Record, error)
	Set(ctx context.Context, key string, rec store.Record) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (store.DurableStats, error)
}

// Cache is the two-level cache. Construct one per process and share it.
type Cache struct {
	memory    *store.MemoryStore
	durable   Durable
	durations map[Kind]time.Duration
	now       func() time.Time
	logger    *slog.Logger

	memoryHits     atomic.Int64
	durableHits    atomic.Int64
	misses         atomic.Int64
	producerErrors atomic.Int64
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDurations overrides the default duration of the given kinds.
func WithDurations(d map[Kind]time.Duration) Option {
	return func(c *Cache) {
		for k, v := range d {
			c.durations[k] = v
		}
	}
}

// New builds a cache over the memory tier and an optional durable tier.
func New(memory *store.MemoryStore, durable Durable, logger *slog.Logger, opts ...Option) *Cache {
	if memory == nil {
		memory = store.NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		memory:    memory,
		durable:   durable,
		durations: make(map[Kind]time.Duration, len(DefaultDurations)),
		now:       time.Now,
		logger:    logging.Component(logger, "cache"),
	}
	for k, v := range DefaultDurations {
		c.durations[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callOptions struct {
	ttl time.Duration
}

// CallOption adjusts a single lookup.
type CallOption func(*callOptions)

// WithTTL overrides the kind's default duration for one lookup.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) { o.ttl = d }
}

// Duration returns the configured default duration for kind.
func (c *Cache) Duration(kind Kind) time.Duration {
	if d, ok := c.durations[kind]; ok {
		return d
	}
	return fallbackDuration
}

func (c *Cache) ttl(kind Kind, opts []CallOption) time.Duration {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl > 0 {
		return o.ttl
	}
	return c.Duration(kind)
}

// Get looks key (kind, p) up in both tiers. The boolean is false when neither
// tier holds an unexpired value of type T.
func Get[T any](ctx context.Context, c *Cache, kind Kind, p Params, opts ...CallOption) (T, bool) {
	var zero T
	key := Key(kind, p)
	ttl := c.ttl(kind, opts)
	now := c.now()

	if e, ok := c.memory.Get(key); ok {
		if now.Sub(e.CreatedAt) > ttl {
			c.memory.Delete(key)
		} else if v, ok := e.Value.(T); ok {
			c.memoryHits.Add(1)
			metrics.CacheLookups.WithLabelValues(string(kind), "memory").Inc()
			return v, true
		}
	}

	if c.durable != nil {
		if v, ok := getDurable[T](ctx, c, key, now, ttl); ok {
			c.durableHits.Add(1)
			metrics.CacheLookups.WithLabelValues(string(kind), "durable").Inc()
			return v, true
		}
	}

	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues(string(kind), "miss").Inc()
	return zero, false
}

func getDurable[T any](ctx context.Context, c *Cache, key string, now time.Time, ttl time.Duration) (T, bool) {
	var zero T

	rec, err := c.durable.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return zero, false
	}
	if err != nil {
		metrics.CacheDurableErrors.WithLabelValues("get").Inc()
		c.logger.Warn("durable read failed, treating as miss", "key", key, "error", err)
		return zero, false
	}

	created := rec.CreatedAt()
	if now.Sub(created) > ttl {
		if err := c.durable.Delete(ctx, key); err != nil {
			metrics.CacheDurableErrors.WithLabelValues("delete").Inc()
			c.logger.Warn("evicting expired durable entry failed", "key", key, "error", err)
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		metrics.CacheDurableErrors.WithLabelValues("decode").Inc()
		c.logger.Warn("durable entry undecodable, treating as miss", "key", key, "error", err)
		return zero, false
	}

	c.memory.Set(key, store.Entry{Value: v, CreatedAt: created})
	return v, true
}

// Set stores value in both tiers with the current time as its timestamp.
// Durable write failures are logged, not returned; only an unencodable value
// is an error, and in that case the memory tier still holds it.
func (c *Cache) Set(ctx context.Context, kind Kind, p Params, value any) error {
	key := Key(kind, p)
	now := c.now()

	c.memory.Set(key, store.Entry{Value: value, CreatedAt: now})

	if c.durable == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.durable.Set(ctx, key, store.Record{Value: raw, Timestamp: now.UnixMilli()}); err != nil {
		metrics.CacheDurableErrors.WithLabelValues("set").Inc()
		c.logger.Warn("durable write failed", "key", key, "error", err)
	}
	return nil
}

// Fetch returns the cached value for (kind, p) or runs produce on a total
// miss and caches its result. Producer errors are returned and nothing is
// cached. A nil or empty result is cached like any other value.
func Fetch[T any](ctx context.Context, c *Cache, kind Kind, p Params, produce func(context.Context) (T, error), opts ...CallOption) (T, error) {
	if v, ok := Get[T](ctx, c, kind, p, opts...); ok {
		return v, nil
	}

	v, err := produce(ctx)
	if err != nil {
		c.producerErrors.Add(1)
		metrics.CacheProducerErrors.WithLabelValues(string(kind)).Inc()
		var zero T
		return zero, err
	}

	if err := c.Set(ctx, kind, p, v); err != nil {
		c.logger.Warn("caching produced value failed", "kind", kind, "error", err)
	}
	return v, nil
}

// Clear empties both tiers.
func (c *Cache) Clear(ctx context.Context) error {
	c.memory.Clear()
	if c.durable == nil {
		return nil
	}
	if err := c.durable.Clear(ctx); err != nil {
		return fmt.Errorf("clear durable tier: %w", err)
	}
	return nil
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	MemoryEntries  int    `json:"memoryEntries"`
	DurableEntries int    `json:"durableEntries"`
	DurableBytes   int64  `json:"durableBytes"`
	MemoryHits     int64  `json:"memoryHits"`
	DurableHits    int64  `json:"durableHits"`
	Misses         int64  `json:"misses"`
	ProducerErrors int64  `json:"producerErrors"`
	DurableError   string `json:"durableError,omitempty"`
}

// Stats reports entry counts, durable size and lookup counters.
func (c *Cache) Stats(ctx context.Context) Stats {
	st := Stats{
		MemoryEntries:  c.memory.Len(),
		MemoryHits:     c.memoryHits.Load(),
		DurableHits:    c.durableHits.Load(),
		Misses:         c.misses.Load(),
		ProducerErrors: c.producerErrors.Load(),
	}
	if c.durable == nil {
		return st
	}

	ds, err := c.durable.Stats(ctx)
	if err != nil {
		c.logger.Warn("durable stats failed", "error", err)
		st.DurableError = err.Error()
		return st
	}
	st.DurableEntries = ds.Entries
	st.DurableBytes = ds.Bytes
	return st
}
