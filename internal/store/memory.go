package store

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a key has no record in a tier.
	ErrNotFound = errors.New("no cached record for key")
)

// Entry is an in-process cache entry holding the decoded value.
type Entry struct {
	Value     any
	CreatedAt time.Time
}

// Record is the persisted form of a cache entry: the JSON encoded value and
// its creation time in epoch milliseconds.
type Record struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
}

// CreatedAt returns the record timestamp as a time.Time.
func (r Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// DurableStats describes the content of a durable tier.
type DurableStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// MemoryStore is a concurrency-safe in-process cache tier.
type MemoryStore struct {
	mu sync.RWMutex

	// key: derived cache key
	data map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Entry),
	}
}

// Get returns the entry stored under key.
func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	return e, ok
}

// Set stores an entry, replacing any previous one.
func (s *MemoryStore) Set(key string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = e
}

// Delete removes key if present.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Clear drops every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]Entry)
}

// Len reports the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
