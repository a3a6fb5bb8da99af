// Package cache implements the in-process query result cache: namespaced,
// TTL-bounded, and optionally capacity-bounded with FIFO eviction.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// Namespace names used by the search service. Each namespace carries its
// own TTL.
const (
	NamespaceSearch       = "search"
	NamespaceAutocomplete = "autocomplete"
	NamespaceAnalytics    = "analytics"
)

// entry is a single cached value. Entries are never mutated in place; a
// re-set replaces the entry wholesale.
type entry struct {
	value      interface{}
	insertedAt time.Time
	seq        uint64
}

// namespace holds the entries and policy for one cache namespace.
type namespace struct {
	ttl      time.Duration
	capacity int // 0 means unbounded
	entries  map[string]*entry
}

// Config describes one namespace's policy.
type Config struct {
	TTL      time.Duration
	Capacity int
}

// Cache is a namespaced key/value store safe for concurrent use by
// multiple in-flight requests. Eviction on capacity overflow is FIFO on
// insertion order, never access recency.
type Cache struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
	seq        uint64
	stopCh     chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

// New creates a Cache with the given namespace policies and starts a
// background janitor that drops expired entries. The instance is meant to
// be constructed once at process start and passed by reference into the
// services that need it.
func New(configs map[string]Config) *Cache {
	c := &Cache{
		namespaces: make(map[string]*namespace, len(configs)),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	for name, cfg := range configs {
		c.namespaces[name] = &namespace{
			ttl:      cfg.TTL,
			capacity: cfg.Capacity,
			entries:  make(map[string]*entry),
		}
	}
	go c.janitor()
	return c
}

// Get returns the cached value for (ns, key), or false on a miss. An entry
// whose TTL has elapsed is never returned, even if the janitor has not yet
// removed it.
func (c *Cache) Get(ns, key string) (interface{}, bool) {
	c.mu.RLock()
	n, ok := c.namespaces[ns]
	if !ok {
		c.mu.RUnlock()
		return nil, false
	}
	e, ok := n.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if n.ttl > 0 && c.now().Sub(e.insertedAt) >= n.ttl {
		// Expired but still physically present; evict lazily.
		c.mu.Lock()
		if cur, ok := n.entries[key]; ok && cur == e {
			delete(n.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value under (ns, key). When the namespace is at capacity the
// earliest-inserted still-present entry is evicted first. Unknown
// namespaces are ignored; a cache write must never fail the caller.
func (c *Cache) Set(ns, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.namespaces[ns]
	if !ok {
		return
	}

	if _, exists := n.entries[key]; !exists && n.capacity > 0 && len(n.entries) >= n.capacity {
		c.evictOldestLocked(n)
	}

	c.seq++
	n.entries[key] = &entry{
		value:      value,
		insertedAt: c.now(),
		seq:        c.seq,
	}
}

// evictOldestLocked removes the entry with the lowest insertion sequence.
// Caller holds c.mu.
func (c *Cache) evictOldestLocked(n *namespace) {
	var oldestKey string
	var oldestSeq uint64
	first := true
	for k, e := range n.entries {
		if first || e.seq < oldestSeq {
			oldestKey = k
			oldestSeq = e.seq
			first = false
		}
	}
	if !first {
		delete(n.entries, oldestKey)
	}
}

// Len returns the number of live entries in a namespace. Expired entries
// not yet collected are counted; Len is a capacity gauge, not a hit gauge.
func (c *Cache) Len(ns string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.namespaces[ns]; ok {
		return len(n.entries)
	}
	return 0
}

// Clear drops every entry in every namespace. Intended for tests.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.namespaces {
		n.entries = make(map[string]*entry)
	}
}

// Close stops the background janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// janitor periodically removes expired entries so namespaces do not grow
// without bound between reads.
func (c *Cache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, n := range c.namespaces {
		if n.ttl <= 0 {
			continue
		}
		for k, e := range n.entries {
			if now.Sub(e.insertedAt) >= n.ttl {
				delete(n.entries, k)
			}
		}
	}
}

// Key builds a deterministic cache key from the query text, the canonical
// filter set, and the search variant. Filters are sorted by name so that
// semantically identical requests always map to the same slot.
func Key(query, variant string, filters map[string]string) string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(variant)
	sb.WriteByte('|')
	sb.WriteString(strings.ToLower(strings.TrimSpace(query)))
	for _, name := range names {
		sb.WriteByte('|')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(filters[name])
	}

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
