// Copyright 2025 LedgerHub
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"sync"
	"time"

	"ledgerhub/platform/tenantdb/base"
)

// VerdictStore caches validation verdicts per tenant. Implementations must
// be safe for concurrent use. Get must miss on expired entries.
type VerdictStore interface {
	Get(tenantKey string) (*Verdict, bool)
	Set(tenantKey string, verdict *Verdict)
	Invalidate(tenantKey string)
	InvalidateAll()
}

type verdictEntry struct {
	verdict   *Verdict
	expiresAt time.Time
}

// VerdictCache is the in-memory TTL cache for validation verdicts. One
// verdict per tenant, replaced atomically on every validation run.
type VerdictCache struct {
	entries map[string]*verdictEntry
	ttl     time.Duration
	clock   base.Clock
	mu      sync.RWMutex
	stats   CacheStats
}

// CacheStats tracks verdict cache performance
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewVerdictCache creates a verdict cache with the given TTL. A
// non-positive TTL falls back to one hour; the right value is
// deployment-dependent and belongs in configuration.
func NewVerdictCache(ttl time.Duration, clock base.Clock) *VerdictCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clock == nil {
		clock = base.SystemClock()
	}
	return &VerdictCache{
		entries: make(map[string]*verdictEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached, non-expired verdict for a tenant
func (c *VerdictCache) Get(tenantKey string) (*Verdict, bool) {
	c.mu.RLock()
	entry, exists := c.entries[tenantKey]
	now := c.clock.Now()
	c.mu.RUnlock()

	if !exists || now.After(entry.expiresAt) {
		c.mu.Lock()
		// Drop the dead entry so the map stays bounded by live tenants
		if exists && c.entries[tenantKey] == entry {
			delete(c.entries, tenantKey)
			c.stats.Evictions++
		}
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	return entry.verdict, true
}

// Set stores a verdict with a fresh TTL, replacing any previous entry
func (c *VerdictCache) Set(tenantKey string, verdict *Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantKey] = &verdictEntry{
		verdict:   verdict,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate removes one tenant's cached verdict
func (c *VerdictCache) Invalidate(tenantKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[tenantKey]; exists {
		delete(c.entries, tenantKey)
		c.stats.Evictions++
	}
}

// InvalidateAll clears every cached verdict
func (c *VerdictCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Evictions += int64(len(c.entries))
	c.entries = make(map[string]*verdictEntry)
}

// Stats returns a snapshot of cache counters
func (c *VerdictCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
