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

/*
Package pool manages one bounded database connection pool per tenant and a
bounded registry of those pools.

# Overview

Every tenant ("agency") owns an isolated database, so the platform would
otherwise accumulate one pool per tenant forever. The Registry caps the
number of live pools and reclaims the rest two ways:

  - LRU batch eviction: when a new tenant arrives at capacity, the coldest
    fraction of pools (default 20%) is evicted in one batch. Evicting a
    batch instead of a single entry keeps a full registry from thrashing
    pools for tenants that are about to come back.
  - Idle sweep: a background pass closes any pool untouched for longer than
    the idle timeout, regardless of capacity pressure.

Each pool's max-connections is deliberately small: N tenants share one
finite database connection budget, so total connections are bounded by
MaxPools x MaxConnsPerPool.

# Concurrency

The tenant map is sharded so lookups for unrelated tenants never contend.
Pool creation and eviction serialize on a single creation lock; the hot
lookup path takes only a shard read lock. A pool is never closed while a
request holds one of its connections: teardown drains in-use connections
first, up to a bound.

# Lifecycle

The registry is an explicitly constructed instance, never a process global.
Construct one at startup, run StartIdleSweeper alongside it, and call
CloseAll on shutdown. Tests build isolated instances with a fake clock and
a stub opener.
*/
package pool
