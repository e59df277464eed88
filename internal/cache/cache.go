// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package cache implements the result cache for completed aggregation
// sessions. Results are keyed on the normalized search query so that
// trivially different spellings of the same search share one entry.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/eventscope/internal/metrics"
	"github.com/tomtom215/eventscope/internal/models"
)

// Result is the snapshot of a completed session stored in the cache.
// SourcesUsed and SourcesFailed are retained so a replayed result can
// report which sources contributed to it.
type Result struct {
	Events        []models.Event              `json:"events"`
	SourcesUsed   []string                    `json:"sources_used"`
	SourcesFailed map[string]models.ErrorKind `json:"sources_failed,omitempty"`
	Status        models.SessionStatus        `json:"status"`
	GeneratedAt   time.Time                   `json:"generated_at"`
}

type entry struct {
	result    Result
	expiresAt time.Time
}

// Cache is a thread-safe in-memory result cache with TTL expiration.
// A background goroutine evicts expired entries periodically; Stop
// terminates it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stats   Stats
	done    chan struct{}
	stop    sync.Once
}

// Stats tracks cache performance counters.
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a result cache whose entries expire after ttl and starts
// the background cleanup goroutine.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stats: Stats{
			LastCleanup: time.Now(),
		},
		done: make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Stop terminates the background cleanup goroutine. Safe to call more
// than once.
func (c *Cache) Stop() {
	c.stop.Do(func() { close(c.done) })
}

// Get retrieves a cached result by key. Expired entries are removed on
// access and counted as misses.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return Result{}, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEviction()
		return Result{}, false
	}

	c.recordHit()
	return e.result, true
}

// Set stores a result under key with the cache's default TTL.
func (c *Cache) Set(key string, result Result) {
	c.SetWithTTL(key, result, c.ttl)
}

// SetWithTTL stores a result with a custom TTL.
func (c *Cache) SetWithTTL(key string, result Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}

	c.stats.mu.Lock()
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.mu.Unlock()
}

// Delete removes a specific cache entry by key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.recordEviction()
}

// Clear removes all entries in a single atomic operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = 0
	c.stats.mu.Unlock()
}

// GetStats returns a snapshot of current cache counters.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) cleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	evictions := int64(0)
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.CacheHits.Inc()
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.CacheMisses.Inc()
}

func (c *Cache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.mu.Unlock()
}

// Key derives a cache key from a search query. The text and location
// are lowercased and whitespace-collapsed before hashing so that
// casing and spacing variants of the same search collide.
func Key(q models.Query) string {
	canonical := normalizeTerm(q.Text) + "|" + normalizeTerm(q.Location)
	hash := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("search:%x", hash[:16])
}

func normalizeTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
