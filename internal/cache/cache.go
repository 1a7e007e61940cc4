// Package cache keeps finished reports keyed by a fingerprint of the input
// that produced them. Entries are derived data and may be dropped at any
// time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"orderstats/internal/model"
	"orderstats/internal/report"
)

// Entry is one cached report.
type Entry struct {
	Payload  report.Payload `json:"payload"`
	StoredAt time.Time      `json:"storedAt"`
}

// Store abstracts the cache backend.
type Store interface {
	Put(key string, e Entry) error
	Get(key string) (Entry, bool)
	Range(fn func(key string, e Entry) error) error
	Len() int
	Close() error
}

// Key describes everything that decides a report's content.
type Key struct {
	Dialect  model.Dialect
	Strategy string
	Days     []model.Day
	Window   string
	Compare  bool
	Content  []byte
}

// Fingerprint hashes k. Requested days are order-insensitive.
func Fingerprint(k Key) string {
	days := make([]string, len(k.Days))
	for i, d := range k.Days {
		days[i] = string(d)
	}
	sort.Strings(days)
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t\x00", k.Dialect, k.Strategy, strings.Join(days, ","), k.Window, k.Compare)
	h.Write(k.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// InMemoryStore is a thread-safe map store. With a positive limit the
// oldest entry is evicted once the limit is exceeded.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string]Entry
	limit int
}

func NewInMemoryStore(limit int) *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Entry), limit: limit}
}

func (s *InMemoryStore) Put(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
	if s.limit > 0 && len(s.data) > s.limit {
		var oldestKey string
		var oldest time.Time
		for k, v := range s.data {
			if oldestKey == "" || v.StoredAt.Before(oldest) {
				oldestKey, oldest = k, v.StoredAt
			}
		}
		delete(s.data, oldestKey)
	}
	return nil
}

func (s *InMemoryStore) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok
}

func (s *InMemoryStore) Range(fn func(key string, e Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *InMemoryStore) Close() error { return nil }

// NopStore caches nothing.
type NopStore struct{}

func (NopStore) Put(string, Entry) error { return nil }
func (NopStore) Get(string) (Entry, bool) { return Entry{}, false }
func (NopStore) Range(func(string, Entry) error) error { return nil }
func (NopStore) Len() int { return 0 }
func (NopStore) Close() error { return nil }
