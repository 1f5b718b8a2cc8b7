// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package threadcache remembers which forum thread holds a series season, so
// repeated grabs skip the forum search.
package threadcache

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/magnetarr/pkg/fsutil"
	"github.com/autobrr/magnetarr/pkg/titleparse"
)

const (
	DefaultTTL     = 180 * 24 * time.Hour
	DefaultMaxSize = 100

	// statsEvery is how many lookups pass between hit rate log lines.
	statsEvery = 10
)

// timestamp layouts accepted on load. Entries written by older versions carry
// naive local ISO timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Entry is one cached thread.
type Entry struct {
	ThreadID string
	Stored   time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	maxSize int
	entries map[string]Entry
	hits    int
	misses  int
	now     func() time.Time
	observe func(hit bool)
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }
func WithMaxSize(n int) Option         { return func(c *Cache) { c.maxSize = n } }

// WithObserver is called on every lookup, e.g. to feed metrics.
func WithObserver(fn func(hit bool)) Option { return func(c *Cache) { c.observe = fn } }

func withClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// Open loads the cache file at path. A missing or unreadable file gives an empty
// cache. An empty path keeps the cache in memory.
func Open(path string, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	c.load()
	return c
}

type fileEntry struct {
	ThreadID  string `yaml:"thread_id"`
	Timestamp string `yaml:"timestamp"`
}

type fileLayout struct {
	ThreadCache map[string]yaml.Node `yaml:"thread_cache"`
}

type fileOut struct {
	ThreadCache map[string]fileEntry `yaml:"thread_cache"`
}

func (c *Cache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", c.path).Msg("could not read thread cache")
		}
		return
	}

	var raw fileLayout
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("ignoring unreadable thread cache")
		return
	}

	now := c.now()
	for key, node := range raw.ThreadCache {
		entry, ok := decodeEntry(&node, now)
		if !ok {
			log.Debug().Str("key", key).Msg("dropping malformed thread cache entry")
			continue
		}
		c.entries[key] = entry
	}
	log.Debug().Int("entries", len(c.entries)).Str("path", c.path).Msg("thread cache loaded")
}

// decodeEntry accepts the mapping form and the bare thread id of older files.
// Bare ids are stamped with now.
func decodeEntry(node *yaml.Node, now time.Time) (Entry, bool) {
	switch node.Kind {
	case yaml.ScalarNode:
		id := strings.TrimSpace(node.Value)
		if id == "" {
			return Entry{}, false
		}
		return Entry{ThreadID: id, Stored: now}, true
	case yaml.MappingNode:
		var fe fileEntry
		if err := node.Decode(&fe); err != nil || strings.TrimSpace(fe.ThreadID) == "" {
			return Entry{}, false
		}
		stored, ok := parseTimestamp(fe.Timestamp)
		if !ok {
			// unparseable timestamps expire on the next lookup
			stored = time.Time{}
		}
		return Entry{ThreadID: strings.TrimSpace(fe.ThreadID), Stored: stored}, true
	default:
		return Entry{}, false
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Key is the cache key of a series season, "Series Title S05".
func Key(series string, season int) string {
	return titleparse.CacheKey(series, season)
}

// Lookup returns the cached thread id for a series season. Expired entries are
// dropped and count as a miss.
func (c *Cache) Lookup(series string, season int) (string, bool) {
	if strings.TrimSpace(series) == "" || season <= 0 {
		return "", false
	}
	key := Key(series, season)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.expired(entry) {
		delete(c.entries, key)
		log.Debug().Str("key", key).Msg("thread cache entry expired")
		ok = false
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.logStatsLocked()
	observe := c.observe
	c.mu.Unlock()

	if observe != nil {
		observe(ok)
	}
	if !ok {
		log.Debug().Str("key", key).Msg("thread cache miss")
		return "", false
	}
	log.Debug().Str("key", key).Str("thread", entry.ThreadID).Msg("thread cache hit")
	return entry.ThreadID, true
}

// Store records a thread for a series season and writes the cache file.
func (c *Cache) Store(series string, season int, threadID string) error {
	if strings.TrimSpace(series) == "" || season <= 0 || threadID == "" {
		return nil
	}
	key := Key(series, season)

	c.mu.Lock()
	c.evictLocked()
	c.entries[key] = Entry{ThreadID: threadID, Stored: c.now()}
	data, err := c.marshalLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	log.Debug().Str("key", key).Str("thread", threadID).Msg("thread cached")
	if c.path == "" {
		return nil
	}
	if err := fsutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write thread cache: %w", err)
	}
	return nil
}

// Forget drops a cached thread, used when the thread no longer exists.
func (c *Cache) Forget(series string, season int) {
	c.mu.Lock()
	delete(c.entries, Key(series, season))
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the lookup counters of this process.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) expired(e Entry) bool {
	return e.Stored.IsZero() || c.now().Sub(e.Stored) > c.ttl
}

// evictLocked removes expired entries and, when the cache is still full, keeps
// the newest 80% of maxSize.
func (c *Cache) evictLocked() {
	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("removed expired thread cache entries")
	}

	if len(c.entries) < c.maxSize {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.entries[b].Stored.Compare(c.entries[a].Stored)
	})

	keep := c.maxSize * 8 / 10
	for _, key := range keys[keep:] {
		delete(c.entries, key)
	}
	log.Info().Int("removed", len(keys)-keep).Msg("thread cache full, dropped oldest entries")
}

func (c *Cache) marshalLocked() ([]byte, error) {
	out := fileOut{ThreadCache: make(map[string]fileEntry, len(c.entries))}
	for key, e := range c.entries {
		out.ThreadCache[key] = fileEntry{ThreadID: e.ThreadID, Timestamp: e.Stored.Format(time.RFC3339)}
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thread cache: %w", err)
	}
	return data, nil
}

func (c *Cache) logStatsLocked() {
	total := c.hits + c.misses
	if total == 0 || total%statsEvery != 0 {
		return
	}
	log.Info().
		Int("hits", c.hits).
		Int("misses", c.misses).
		Int("total", total).
		Str("hitRate", fmt.Sprintf("%.1f%%", float64(c.hits)*100/float64(total))).
		Msg("thread cache stats")
}
