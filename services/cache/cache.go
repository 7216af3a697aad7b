// Package cache holds upstream responses for a fixed time window and falls back to the
// last good value when a refresh fails.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached slot. Value is nil until the first successful fetch.
type Entry struct {
	Value     any
	FetchedAt time.Time
}

// Result is what Get hands back to callers.
type Result[T any] struct {
	Value     T
	FetchedAt time.Time
	Cached    bool
	Stale     bool
	now       time.Time
}

// Age is how old the value was when it was returned
func (r Result[T]) Age() time.Duration {
	if r.FetchedAt.IsZero() {
		return 0
	}
	return r.now.Sub(r.FetchedAt)
}

// KeyStat describes one slot for the status endpoint
type KeyStat struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetchedAt"`
	AgeSec    int64     `json:"ageSeconds"`
}

// Store owns every slot for a service instance.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key, calling fetch only when the slot is empty, expired or
// forceRefresh is set. A failed fetch returns the previous value marked stale; with no
// previous value the fetch error is returned.
func Get[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error), forceRefresh bool) (Result[T], error) {
	if forceRefresh {
		s.Clear(key)
	} else if entry, ok := s.lookup(key); ok {
		if value, ok := entry.Value.(T); ok {
			now := s.now()
			if now.Sub(entry.FetchedAt) < ttl {
				return Result[T]{Value: value, FetchedAt: entry.FetchedAt, Cached: true, now: now}, nil
			}
		}
	}

	// concurrent misses on one key share a single upstream call. The shared fetch outlives
	// any one caller; each caller still stops waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		value, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		return s.set(key, value), nil
	})

	var v any
	var err error
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		entry := v.(*Entry)
		if value, ok := entry.Value.(T); ok {
			return Result[T]{Value: value, FetchedAt: entry.FetchedAt, now: s.now()}, nil
		}
		err = fmt.Errorf("cache: key %q holds %T", key, entry.Value)
	}

	if entry, ok := s.lookup(key); ok {
		if value, ok := entry.Value.(T); ok {
			return Result[T]{Value: value, FetchedAt: entry.FetchedAt, Cached: true, Stale: true, now: s.now()}, nil
		}
	}

	var zero T
	return Result[T]{Value: zero}, err
}

func (s *Store) lookup(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || entry.Value == nil {
		return nil, false
	}
	return entry, true
}

// Peek returns the raw entry for key without touching upstream
func (s *Store) Peek(key string) (Entry, bool) {
	entry, ok := s.lookup(key)
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Set stores value under key as a fresh fetch
func (s *Store) Set(key string, value any) {
	s.set(key, value)
}

func (s *Store) set(key string, value any) *Entry {
	entry := &Entry{Value: value, FetchedAt: s.now()}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return entry
}

// Clear resets one slot to empty
func (s *Store) Clear(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// ClearAll resets every slot
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
}

// Stats lists the populated slots, sorted by key
func (s *Store) Stats() []KeyStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := make([]KeyStat, 0, len(s.entries))
	for key, entry := range s.entries {
		stats = append(stats, KeyStat{
			Key:       key,
			FetchedAt: entry.FetchedAt,
			AgeSec:    int64(now.Sub(entry.FetchedAt).Seconds()),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats
}
