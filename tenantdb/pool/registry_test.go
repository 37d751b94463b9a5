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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerhub/platform/tenantdb/base"
)

// fakeClock is a manually advanced clock for deterministic LRU and idle
// timeout tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockOpener hands out sqlmock-backed handles and records which tenants
// were opened.
type mockOpener struct {
	mu     sync.Mutex
	opened []string
	fail   map[string]error
}

func (o *mockOpener) open(_ context.Context, tenantKey string) (*sql.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err, ok := o.fail[tenantKey]; ok {
		return nil, err
	}
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.ExpectClose()
	o.opened = append(o.opened, tenantKey)
	return db, nil
}

func (o *mockOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func newTestRegistry(t *testing.T, opts Options) (*Registry, *mockOpener, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opener := &mockOpener{fail: map[string]error{}}
	opts.Clock = clock
	r := NewRegistry(opener.open, opts)
	t.Cleanup(func() { r.CloseAll(context.Background()) })
	return r, opener, clock
}

func TestGetOrCreateReusesLivePool(t *testing.T) {
	r, opener, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, "acme_hr")
	require.NoError(t, err)
	second, err := r.GetOrCreate(ctx, "acme_hr")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, opener.openCount())

	snap := r.Stats()
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
}

func TestGetOrCreateRejectsInvalidKey(t *testing.T) {
	r, opener, _ := newTestRegistry(t, Options{})

	tests := []string{
		"",
		"Tenant",
		"acme;drop table users",
		"../etc/passwd",
		"postgres",
	}
	for _, key := range tests {
		_, err := r.GetOrCreate(context.Background(), key)
		var invalidErr *base.TenantKeyInvalidError
		assert.ErrorAs(t, err, &invalidErr, "key %q should be rejected", key)
	}
	assert.Equal(t, 0, opener.openCount(), "opener must not run for invalid keys")
}

func TestRegistryNeverExceedsMaxPools(t *testing.T) {
	r, _, clock := newTestRegistry(t, Options{MaxPools: 4})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := r.GetOrCreate(ctx, fmt.Sprintf("tenant_%d", i))
		require.NoError(t, err)
		clock.Advance(time.Second)
		assert.LessOrEqual(t, r.Stats().Pools, 4)
	}

	snap := r.Stats()
	assert.Equal(t, 4, snap.Pools)
	assert.Equal(t, int64(12), snap.Misses)
	assert.Equal(t, int64(8), snap.Evictions)
}

func TestEvictionRemovesColdestBatch(t *testing.T) {
	// MaxPools 10 at fraction 0.2 evicts two entries per batch
	r, _, clock := newTestRegistry(t, Options{MaxPools: 10, EvictFraction: 0.2})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := r.GetOrCreate(ctx, fmt.Sprintf("tenant_%d", i))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	// Re-access the two oldest so eviction must pick the next-coldest
	_, err := r.GetOrCreate(ctx, "tenant_0")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = r.GetOrCreate(ctx, "tenant_1")
	require.NoError(t, err)
	clock.Advance(time.Minute)

	_, err = r.GetOrCreate(ctx, "tenant_new")
	require.NoError(t, err)

	snap := r.Stats()
	assert.Equal(t, 9, snap.Pools)
	keys := make(map[string]bool)
	for _, ps := range snap.PerPool {
		keys[ps.TenantKey] = true
	}
	assert.True(t, keys["tenant_0"], "recently used pool must survive eviction")
	assert.True(t, keys["tenant_1"], "recently used pool must survive eviction")
	assert.True(t, keys["tenant_new"])
	assert.False(t, keys["tenant_2"], "coldest pool should be evicted")
	assert.False(t, keys["tenant_3"], "second-coldest pool should be evicted")
}

func TestEvictionBatchIsAtLeastOne(t *testing.T) {
	// MaxPools 3 at fraction 0.2 rounds down to zero; eviction must still
	// make room for the new pool
	r, _, clock := newTestRegistry(t, Options{MaxPools: 3, EvictFraction: 0.2})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.GetOrCreate(ctx, fmt.Sprintf("tenant_%d", i))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := r.GetOrCreate(ctx, "tenant_3")
	require.NoError(t, err)

	snap := r.Stats()
	assert.Equal(t, 3, snap.Pools)
	assert.Equal(t, int64(1), snap.Evictions)
}

func TestRemoveSparesPoolTouchedAfterSnapshot(t *testing.T) {
	r, _, clock := newTestRegistry(t, Options{MaxPools: 4})
	ctx := context.Background()

	p, err := r.GetOrCreate(ctx, "acme_hr")
	require.NoError(t, err)
	snapshot := p.LastAccessed().UnixNano()

	// A hit after the eviction candidate snapshot re-ranks the pool
	clock.Advance(time.Second)
	again, err := r.GetOrCreate(ctx, "acme_hr")
	require.NoError(t, err)
	require.Same(t, p, again)

	r.createMu.Lock()
	removed := r.remove(ctx, p, snapshot, "lru_eviction")
	r.createMu.Unlock()
	assert.False(t, removed, "a pool touched after the snapshot must survive")

	kept, err := r.GetOrCreate(ctx, "acme_hr")
	require.NoError(t, err)
	assert.Same(t, p, kept)

	r.createMu.Lock()
	removed = r.remove(ctx, p, 0, "invalidated")
	r.createMu.Unlock()
	assert.True(t, removed, "unconditional removal always applies")
}

func TestReleaseIdleClosesOnlyStalePools(t *testing.T) {
	r, _, clock := newTestRegistry(t, Options{IdleTimeout: 30 * time.Minute})
	ctx := context.Background()

	for _, key := range []string{"tenant_a", "tenant_b", "tenant_c"} {
		_, err := r.GetOrCreate(ctx, key)
		require.NoError(t, err)
	}

	clock.Advance(31 * time.Minute)
	// Keep tenant_a warm
	_, err := r.GetOrCreate(ctx, "tenant_a")
	require.NoError(t, err)

	r.ReleaseIdle(ctx)

	snap := r.Stats()
	assert.Equal(t, 1, snap.Pools)
	assert.Equal(t, int64(1), snap.Sweeps)
	require.Len(t, snap.PerPool, 1)
	assert.Equal(t, "tenant_a", snap.PerPool[0].TenantKey)
}

func TestReleaseIdleUnderCapacityIsNoOp(t *testing.T) {
	r, _, clock := newTestRegistry(t, Options{IdleTimeout: 30 * time.Minute})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "tenant_a")
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	r.ReleaseIdle(ctx)

	snap := r.Stats()
	assert.Equal(t, 1, snap.Pools)
	assert.Equal(t, int64(0), snap.Evictions)
}

func TestStatsColdStart(t *testing.T) {
	r, _, _ := newTestRegistry(t, Options{MaxPools: 50})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "first_tenant")
	require.NoError(t, err)

	snap := r.Stats()
	assert.Equal(t, 1, snap.Pools)
	assert.Equal(t, 50, snap.MaxPools)
	// No statement has run yet, so database/sql has opened nothing
	assert.Equal(t, 0, snap.TotalConnections)
	require.Len(t, snap.PerPool, 1)
	assert.Equal(t, int64(0), snap.PerPool[0].QueryCount)
}

func TestInvalidateRemovesPool(t *testing.T) {
	r, opener, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "tenant_a")
	require.NoError(t, err)

	require.NoError(t, r.Invalidate(ctx, "tenant_a"))
	assert.Equal(t, 0, r.Stats().Pools)

	// Unknown tenant is a no-op
	require.NoError(t, r.Invalidate(ctx, "tenant_unknown"))

	// Next acquire builds a fresh pool
	_, err = r.GetOrCreate(ctx, "tenant_a")
	require.NoError(t, err)
	assert.Equal(t, 2, opener.openCount())
}

func TestOpenerFailureSurfacesAndLeavesNoEntry(t *testing.T) {
	r, opener, _ := newTestRegistry(t, Options{})
	opener.fail["tenant_broken"] = errors.New("connection refused")
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "tenant_broken")
	var createErr *base.PoolCreationError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, "tenant_broken", createErr.TenantKey)
	assert.Equal(t, 0, r.Stats().Pools)

	// A later attempt retries the opener instead of caching the failure
	delete(opener.fail, "tenant_broken")
	_, err = r.GetOrCreate(ctx, "tenant_broken")
	require.NoError(t, err)
}

func TestCloseAllRejectsFurtherUse(t *testing.T) {
	r, _, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "tenant_a")
	require.NoError(t, err)

	r.CloseAll(ctx)
	assert.Equal(t, 0, r.Stats().Pools)

	_, err = r.GetOrCreate(ctx, "tenant_b")
	require.Error(t, err)
}

func TestConcurrentAcquireSameTenant(t *testing.T) {
	r, opener, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.GetOrCreate(ctx, "shared_tenant")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opener.openCount(), "concurrent acquires must share one pool")
	assert.Equal(t, 1, r.Stats().Pools)
}
