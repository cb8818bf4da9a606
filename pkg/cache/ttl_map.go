// Package cache holds small in-memory caches shared by the Discord layer.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// TTLMap is a concurrent in-memory map with per-key TTL.
// - Safe for concurrent use.
// - Default TTL applied when Set is called with ttl <= 0.
// - Optional periodic cleanup of expired entries.
// - Basic hit/miss stats.
type TTLMap struct {
	mu              sync.RWMutex
	data            map[string]*ttlEntry
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}

	name    string
	maxSize int
}

type ttlEntry struct {
	value     any
	expiresAt time.Time
	hasExpiry bool
}

func (e *ttlEntry) live(now time.Time) bool {
	return e != nil && (!e.hasExpiry || now.Before(e.expiresAt))
}

// Option configures a TTLMap.
type Option func(*TTLMap)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *TTLMap) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTTLMap creates a TTLMap.
// - name shows up in Stats.
// - defaultTTL is used when Set is called with ttl <= 0.
// - cleanupInterval 0 disables the background cleanup goroutine.
// - maxSize > 0 is a soft cap: exceeding it triggers a cleanup on Set.
func NewTTLMap(name string, defaultTTL, cleanupInterval time.Duration, maxSize int, opts ...Option) *TTLMap {
	m := &TTLMap{
		data:            make(map[string]*ttlEntry),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		stopCh:          make(chan struct{}),
		name:            name,
		maxSize:         maxSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop()
	}
	return m
}

// Close stops the background cleanup goroutine, if any.
func (m *TTLMap) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// Get returns the value for key when present and not expired.
func (m *TTLMap) Get(key string) (any, bool) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if entry.live(now) {
		m.hits.Add(1)
		return entry.value, true
	}
	m.misses.Add(1)
	if ok {
		m.dropExpired(key, now)
	}
	return nil, false
}

// Set stores value under key. ttl <= 0 applies the default TTL; with no
// default the entry never expires.
func (m *TTLMap) Set(key string, value any, ttl time.Duration) {
	now := m.now()
	m.mu.Lock()
	m.setLocked(key, value, ttl, now)
	m.mu.Unlock()
}

// SetIfAbsent stores value only when key has no live entry and reports
// whether it did. The check and the insert are atomic.
func (m *TTLMap) SetIfAbsent(key string, value any, ttl time.Duration) bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key].live(now) {
		m.hits.Add(1)
		return false
	}
	m.misses.Add(1)
	m.setLocked(key, value, ttl, now)
	return true
}

func (m *TTLMap) setLocked(key string, value any, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	entry := &ttlEntry{value: value}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = now.Add(ttl)
	}
	m.data[key] = entry
	if m.maxSize > 0 && len(m.data) > m.maxSize {
		m.cleanupExpiredLocked(now)
	}
}

// Delete removes key. Missing keys are fine.
func (m *TTLMap) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Has reports whether key is live without touching the hit/miss counters.
func (m *TTLMap) Has(key string) bool {
	now := m.now()
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if entry.live(now) {
		return true
	}
	if ok {
		m.dropExpired(key, now)
	}
	return false
}

// Size returns the number of live entries.
func (m *TTLMap) Size() int {
	now := m.now()
	count := 0
	m.mu.RLock()
	for _, v := range m.data {
		if v.live(now) {
			count++
		}
	}
	m.mu.RUnlock()
	return count
}

// Cleanup removes expired entries immediately.
func (m *TTLMap) Cleanup() {
	now := m.now()
	m.mu.Lock()
	m.cleanupExpiredLocked(now)
	m.lastCleanup = now
	m.mu.Unlock()
}

// Stats is a point-in-time view of a TTLMap.
type Stats struct {
	Name        string
	Entries     int
	RawEntries  int
	Hits        uint64
	Misses      uint64
	HitRate     float64
	LastCleanup time.Time
}

func (m *TTLMap) Stats() Stats {
	now := m.now()
	st := Stats{Name: m.name, Hits: m.hits.Load(), Misses: m.misses.Load()}

	m.mu.RLock()
	for _, v := range m.data {
		if v.live(now) {
			st.Entries++
		}
	}
	st.RawEntries = len(m.data)
	st.LastCleanup = m.lastCleanup
	m.mu.RUnlock()

	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

func (m *TTLMap) dropExpired(key string, now time.Time) {
	m.mu.Lock()
	if cur, exists := m.data[key]; exists && !cur.live(now) {
		delete(m.data, key)
	}
	m.mu.Unlock()
}

func (m *TTLMap) cleanupLoop() {
	t := time.NewTicker(m.cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *TTLMap) cleanupExpiredLocked(now time.Time) {
	for k, v := range m.data {
		if !v.live(now) {
			delete(m.data, k)
		}
	}
}
