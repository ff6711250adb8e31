package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is the process-local limiter backend. The key table is LRU-bounded
// so that many distinct caller identities cannot grow process memory without
// bound; evicting a key forgets its window, which can only under-count for
// that key, never admit more than the limit for a key still in the table.
type Memory struct {
	config Config
	now    func() time.Time

	// mu serializes the prune-check-append sequence. Contention is expected
	// to be low, so one coarse lock covers all keys.
	mu   sync.Mutex
	keys *lru.Cache[string, *record]
}

type record struct {
	stamps []time.Time
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithClock overrides the time source, for tests driving virtual time.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an in-memory sliding-window limiter.
func NewMemory(config Config, opts ...MemoryOption) *Memory {
	config = config.withDefaults()

	keys, err := lru.New[string, *record](config.MaxKeys)
	if err != nil {
		// Only reachable with a non-positive size, which withDefaults rules out.
		panic(err)
	}

	m := &Memory{
		config: config,
		now:    time.Now,
		keys:   keys,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Allow prunes the key's record to the trailing window, admits the request if
// the pruned count is below the limit, and records the request timestamp only
// when admitted.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.config.Window)

	rec, ok := m.keys.Get(key)
	if !ok {
		rec = &record{}
		m.keys.Add(key, rec)
	}

	kept := rec.stamps[:0]

	for _, stamp := range rec.stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}

	rec.stamps = kept

	if len(rec.stamps) >= m.config.Limit {
		return false, nil
	}

	rec.stamps = append(rec.stamps, now)

	return true, nil
}

// Sweep drops keys whose newest timestamp has aged out of the window. Intended
// to run periodically so idle identities do not linger until LRU eviction.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.config.Window)
	removed := 0

	for _, key := range m.keys.Keys() {
		rec, ok := m.keys.Peek(key)
		if !ok {
			continue
		}

		if len(rec.stamps) == 0 || !rec.stamps[len(rec.stamps)-1].After(cutoff) {
			m.keys.Remove(key)

			removed++
		}
	}

	return removed
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	return m.keys.Len()
}

func (m *Memory) Close() error {
	return nil
}
