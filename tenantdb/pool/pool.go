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
	"sync/atomic"
	"time"

	"ledgerhub/platform/tenantdb/base"
)

// drainPollInterval is how often teardown re-checks for in-use connections
const drainPollInterval = 50 * time.Millisecond

// TenantPool is one tenant's bounded connection pool together with its
// usage bookkeeping. Instances are owned exclusively by the Registry; no
// other component holds a reference longer than a single request.
type TenantPool struct {
	key          string
	db           *sql.DB
	createdAt    time.Time
	lastAccessed int64 // unix nanos, updated atomically on every use
	queryCount   int64
}

func newTenantPool(key string, db *sql.DB, now time.Time) *TenantPool {
	return &TenantPool{
		key:          key,
		db:           db,
		createdAt:    now,
		lastAccessed: now.UnixNano(),
	}
}

// Key returns the tenant key this pool serves
func (p *TenantPool) Key() string {
	return p.key
}

// DB returns the underlying database handle
func (p *TenantPool) DB() *sql.DB {
	return p.db
}

// CreatedAt returns when the pool was created
func (p *TenantPool) CreatedAt() time.Time {
	return p.createdAt
}

// LastAccessed returns the last time the pool was handed out
func (p *TenantPool) LastAccessed() time.Time {
	return time.Unix(0, atomic.LoadInt64(&p.lastAccessed))
}

// QueryCount returns the cumulative number of times the pool was handed out
func (p *TenantPool) QueryCount() int64 {
	return atomic.LoadInt64(&p.queryCount)
}

// Conn checks out one connection, blocking up to the context deadline when
// the pool is at its connection limit. A deadline hit surfaces as
// PoolExhaustedError.
func (p *TenantPool) Conn(ctx context.Context) (*sql.Conn, error) {
	start := time.Now()
	conn, err := p.db.Conn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, base.NewPoolExhaustedError(p.key, time.Since(start), err)
		}
		return nil, err
	}
	return conn, nil
}

// touch records one use of the pool
func (p *TenantPool) touch(now time.Time) {
	atomic.StoreInt64(&p.lastAccessed, now.UnixNano())
	atomic.AddInt64(&p.queryCount, 1)
}

// closeDrained closes the pool once no request is borrowing a connection
// from it, polling until the drain deadline and closing regardless after
// that. database/sql keeps already-borrowed connections usable through
// Close, so the late close is safe; draining just keeps teardown polite.
func (p *TenantPool) closeDrained(ctx context.Context, drainTimeout time.Duration) error {
	deadline := time.Now().Add(drainTimeout)
	for p.db.Stats().InUse > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return p.db.Close()
		case <-time.After(drainPollInterval):
		}
	}
	return p.db.Close()
}
