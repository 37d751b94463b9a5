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

package pool

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb/base"
)

// shardCount is the number of map shards. Sixteen keeps lock contention
// between unrelated tenants negligible at the registry sizes we run.
const shardCount = 16

// Opener creates the underlying database handle for a tenant. It is
// expected to open and ping the tenant database; the registry applies the
// connection limits afterward.
type Opener func(ctx context.Context, tenantKey string) (*sql.DB, error)

// Options configures a Registry
type Options struct {
	// MaxPools caps live pool entries (default 50)
	MaxPools int
	// MaxConnsPerPool caps connections per tenant pool (default 5).
	// Deliberately much smaller than a single-tenant default: all
	// tenants share one database connection budget.
	MaxConnsPerPool int
	// MaxIdleConnsPerPool caps idle connections per pool (default 2)
	MaxIdleConnsPerPool int
	// ConnMaxLifetime recycles connections after this age (default 30m)
	ConnMaxLifetime time.Duration
	// IdleTimeout is how long a pool may go untouched before the idle
	// sweep closes it (default 30m)
	IdleTimeout time.Duration
	// EvictFraction is the share of MaxPools evicted in one batch at
	// capacity (default 0.20). Tunable; verify empirically per
	// deployment rather than trusting the default.
	EvictFraction float64
	// DrainTimeout bounds how long teardown waits for in-use
	// connections before closing anyway (default 5s)
	DrainTimeout time.Duration

	Clock   base.Clock
	Logger  *logger.Logger
	Metrics *Metrics
}

func (o *Options) applyDefaults() {
	if o.MaxPools <= 0 {
		o.MaxPools = 50
	}
	if o.MaxConnsPerPool <= 0 {
		o.MaxConnsPerPool = 5
	}
	if o.MaxIdleConnsPerPool <= 0 {
		o.MaxIdleConnsPerPool = 2
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.EvictFraction <= 0 || o.EvictFraction > 1 {
		o.EvictFraction = 0.20
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = base.SystemClock()
	}
	if o.Logger == nil {
		o.Logger = logger.New("tenantdb")
	}
}

type shard struct {
	mu    sync.RWMutex
	pools map[string]*TenantPool
}

// Registry maps tenant keys to live, bounded connection pools, enforcing a
// global pool cap and reclaiming idle entries. Safe for concurrent use.
type Registry struct {
	opener Opener
	opts   Options
	shards [shardCount]*shard

	// createMu serializes pool creation and eviction so the capacity
	// invariant holds; lookups never take it
	createMu sync.Mutex
	count    int

	closedMu sync.Mutex
	closed   bool

	// monotonic counters, reported in Snapshot
	statsMu   sync.Mutex
	hits      int64
	misses    int64
	evictions int64
	sweeps    int64
}

// NewRegistry creates a Registry. The opener is called once per tenant pool
// creation; its failures surface to the caller as PoolCreationError and are
// never retried internally.
func NewRegistry(opener Opener, opts Options) *Registry {
	opts.applyDefaults()
	r := &Registry{
		opener: opener,
		opts:   opts,
	}
	for i := range r.shards {
		r.shards[i] = &shard{pools: make(map[string]*TenantPool)}
	}
	return r
}

func (r *Registry) shardFor(tenantKey string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantKey))
	return r.shards[h.Sum32()%shardCount]
}

// GetOrCreate returns the live pool for a tenant, creating one if needed.
// The hot path is a shard read-lock lookup; creation serializes on a
// single lock and may first evict the least-recently-used batch when the
// registry is at capacity.
func (r *Registry) GetOrCreate(ctx context.Context, tenantKey string) (*TenantPool, error) {
	if err := base.ValidateTenantKey(tenantKey); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if r.opts.Metrics != nil {
			r.opts.Metrics.AcquireLatency.Observe(time.Since(start).Seconds())
		}
	}()

	s := r.shardFor(tenantKey)

	s.mu.RLock()
	p, ok := s.pools[tenantKey]
	if ok {
		// Touch while still holding the read lock. Eviction re-reads the
		// access time under the write lock before closing, so a handle
		// returned here is never closed out from under the caller.
		p.touch(r.opts.Clock.Now())
	}
	s.mu.RUnlock()
	if ok {
		r.recordHit()
		return p, nil
	}

	return r.create(ctx, tenantKey, s)
}

func (r *Registry) create(ctx context.Context, tenantKey string, s *shard) (*TenantPool, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	// Another goroutine may have created the pool while we waited
	s.mu.RLock()
	p, ok := s.pools[tenantKey]
	s.mu.RUnlock()
	if ok {
		p.touch(r.opts.Clock.Now())
		r.recordHit()
		return p, nil
	}

	r.recordMiss()

	if r.count >= r.opts.MaxPools {
		r.evictColdest(ctx)
	}

	db, err := r.opener(ctx, tenantKey)
	if err != nil {
		return nil, base.NewPoolCreationError(tenantKey, err)
	}

	db.SetMaxOpenConns(r.opts.MaxConnsPerPool)
	db.SetMaxIdleConns(r.opts.MaxIdleConnsPerPool)
	db.SetConnMaxLifetime(r.opts.ConnMaxLifetime)

	now := r.opts.Clock.Now()
	p = newTenantPool(tenantKey, db, now)

	s.mu.Lock()
	s.pools[tenantKey] = p
	s.mu.Unlock()
	r.count++

	if r.opts.Metrics != nil {
		r.opts.Metrics.PoolsCreated.Inc()
		r.opts.Metrics.ActivePools.Set(float64(r.count))
	}

	r.opts.Logger.Info(tenantKey, "", "Tenant pool created", map[string]interface{}{
		"max_conns":    r.opts.MaxConnsPerPool,
		"active_pools": r.count,
	})

	return p, nil
}

// evictColdest removes the least-recently-used batch of pools. Evicting a
// batch rather than one entry amortizes eviction churn when the registry
// runs at capacity. Caller holds createMu.
func (r *Registry) evictColdest(ctx context.Context) {
	batch := int(float64(r.opts.MaxPools) * r.opts.EvictFraction)
	if batch < 1 {
		batch = 1
	}

	type candidate struct {
		pool     *TenantPool
		accessed int64
	}
	var candidates []candidate
	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.pools {
			candidates = append(candidates, candidate{pool: p, accessed: p.LastAccessed().UnixNano()})
		}
		s.mu.RUnlock()
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].accessed < candidates[j].accessed
	})

	removed := 0
	for _, c := range candidates {
		if removed >= batch {
			break
		}
		if r.remove(ctx, c.pool, c.accessed, "lru_eviction") {
			removed++
		}
	}

	// The capacity cap is hard: if every candidate was touched since the
	// snapshot, evict the coldest anyway so the pending create has a slot
	if removed == 0 {
		for _, c := range candidates {
			if r.remove(ctx, c.pool, 0, "lru_eviction") {
				break
			}
		}
	}
}

// remove deletes a pool from its shard and closes it, reporting whether it
// did. A non-zero notTouchedAfter makes the removal conditional: a pool
// accessed after that instant is left alone, so eviction and the idle sweep
// never close a handle the hot path handed out after their candidate
// snapshot. Caller holds createMu.
func (r *Registry) remove(ctx context.Context, p *TenantPool, notTouchedAfter int64, reason string) bool {
	s := r.shardFor(p.Key())
	s.mu.Lock()
	if s.pools[p.Key()] != p {
		// Already replaced or removed
		s.mu.Unlock()
		return false
	}
	if notTouchedAfter > 0 && p.LastAccessed().UnixNano() > notTouchedAfter {
		s.mu.Unlock()
		return false
	}
	delete(s.pools, p.Key())
	s.mu.Unlock()
	r.count--

	r.statsMu.Lock()
	r.evictions++
	r.statsMu.Unlock()

	if r.opts.Metrics != nil {
		r.opts.Metrics.PoolsEvicted.Inc()
		r.opts.Metrics.ActivePools.Set(float64(r.count))
	}

	if err := p.closeDrained(ctx, r.opts.DrainTimeout); err != nil {
		r.opts.Logger.Warn(p.Key(), "", "Error closing tenant pool", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
	} else {
		r.opts.Logger.Debug(p.Key(), "", "Tenant pool closed", map[string]interface{}{
			"reason":  reason,
			"queries": p.QueryCount(),
		})
	}
	return true
}

// ReleaseIdle closes every pool untouched for longer than the idle timeout,
// regardless of capacity pressure. Close errors are logged and do not abort
// the sweep of remaining entries.
func (r *Registry) ReleaseIdle(ctx context.Context) {
	cutoff := r.opts.Clock.Now().Add(-r.opts.IdleTimeout)

	r.createMu.Lock()
	defer r.createMu.Unlock()

	var idle []*TenantPool
	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.pools {
			if p.LastAccessed().Before(cutoff) {
				idle = append(idle, p)
			}
		}
		s.mu.RUnlock()
	}

	released := 0
	for _, p := range idle {
		if r.remove(ctx, p, cutoff.UnixNano(), "idle_timeout") {
			released++
		}
	}

	r.statsMu.Lock()
	r.sweeps++
	r.statsMu.Unlock()

	if r.opts.Metrics != nil {
		r.opts.Metrics.IdleSweeps.Inc()
	}

	if released > 0 {
		r.opts.Logger.Info("", "", "Idle sweep released pools", map[string]interface{}{
			"released":     released,
			"active_pools": r.count,
		})
	}
}

// StartIdleSweeper runs ReleaseIdle on a fixed interval until the context
// is canceled
func (r *Registry) StartIdleSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.opts.Logger.Debug("", "", "Stopping idle sweeper", nil)
				return
			case <-ticker.C:
				r.ReleaseIdle(ctx)
			}
		}
	}()
}

// Invalidate force-closes and removes a tenant's pool so the next
// GetOrCreate builds a fresh one. Used after tenant deletion or when an
// administrator wants a clean slate. No-op if the tenant has no pool.
func (r *Registry) Invalidate(ctx context.Context, tenantKey string) error {
	if err := base.ValidateTenantKey(tenantKey); err != nil {
		return err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	s := r.shardFor(tenantKey)
	s.mu.RLock()
	p, ok := s.pools[tenantKey]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	r.remove(ctx, p, 0, "invalidated")
	return nil
}

// PoolStats describes one live pool in a Snapshot
type PoolStats struct {
	TenantKey       string    `json:"tenant_key"`
	OpenConnections int       `json:"open_connections"`
	InUse           int       `json:"in_use"`
	Idle            int       `json:"idle"`
	QueryCount      int64     `json:"query_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessed    time.Time `json:"last_accessed"`
}

// Snapshot is a read-only view of the registry for observability
type Snapshot struct {
	Pools            int         `json:"pools"`
	MaxPools         int         `json:"max_pools"`
	TotalConnections int         `json:"total_connections"`
	Hits             int64       `json:"hits"`
	Misses           int64       `json:"misses"`
	Evictions        int64       `json:"evictions"`
	Sweeps           int64       `json:"sweeps"`
	PerPool          []PoolStats `json:"per_pool,omitempty"`
}

// Stats returns a point-in-time snapshot. Read-only; does not touch
// last-accessed timestamps.
func (r *Registry) Stats() Snapshot {
	snap := Snapshot{MaxPools: r.opts.MaxPools}

	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.pools {
			dbStats := p.DB().Stats()
			snap.Pools++
			snap.TotalConnections += dbStats.OpenConnections
			snap.PerPool = append(snap.PerPool, PoolStats{
				TenantKey:       p.Key(),
				OpenConnections: dbStats.OpenConnections,
				InUse:           dbStats.InUse,
				Idle:            dbStats.Idle,
				QueryCount:      p.QueryCount(),
				CreatedAt:       p.CreatedAt(),
				LastAccessed:    p.LastAccessed(),
			})
		}
		s.mu.RUnlock()
	}

	sort.Slice(snap.PerPool, func(i, j int) bool {
		return snap.PerPool[i].TenantKey < snap.PerPool[j].TenantKey
	})

	r.statsMu.Lock()
	snap.Hits, snap.Misses = r.hits, r.misses
	snap.Evictions, snap.Sweeps = r.evictions, r.sweeps
	r.statsMu.Unlock()

	return snap
}

// CloseAll closes every pool and marks the registry closed. Subsequent
// GetOrCreate calls fail. Used at process shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.closedMu.Lock()
	r.closed = true
	r.closedMu.Unlock()

	r.createMu.Lock()
	defer r.createMu.Unlock()

	var all []*TenantPool
	for _, s := range r.shards {
		s.mu.RLock()
		for _, p := range s.pools {
			all = append(all, p)
		}
		s.mu.RUnlock()
	}

	for _, p := range all {
		r.remove(ctx, p, 0, "shutdown")
	}

	r.opts.Logger.Info("", "", "All tenant pools closed", map[string]interface{}{
		"closed": len(all),
	})
}

func (r *Registry) checkOpen() error {
	r.closedMu.Lock()
	defer r.closedMu.Unlock()
	if r.closed {
		return fmt.Errorf("pool registry is closed")
	}
	return nil
}

func (r *Registry) recordHit() {
	r.statsMu.Lock()
	r.hits++
	r.statsMu.Unlock()
	if r.opts.Metrics != nil {
		r.opts.Metrics.LookupHits.Inc()
	}
}

func (r *Registry) recordMiss() {
	r.statsMu.Lock()
	r.misses++
	r.statsMu.Unlock()
	if r.opts.Metrics != nil {
		r.opts.Metrics.LookupMisses.Inc()
	}
}
