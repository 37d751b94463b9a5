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
	"context"
	"database/sql"
	"sync"
	"time"

	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb/base"
)

// DBProvider hands the validator and sync engine a live handle for a tenant
// database. The pool registry satisfies this through the facade.
type DBProvider interface {
	DB(ctx context.Context, tenantKey string) (*sql.DB, error)
}

// CheckOptions controls a validation request
type CheckOptions struct {
	// Force bypasses the verdict cache and always introspects
	Force bool
}

// ValidatorOptions configures a Validator
type ValidatorOptions struct {
	Catalog      *Catalog
	Store        VerdictStore
	Introspector Introspector
	Provider     DBProvider
	Clock        base.Clock
	Logger       *logger.Logger
	Metrics      *Metrics
	// IntrospectionTimeout bounds one full introspection pass,
	// separately from normal query timeouts
	IntrospectionTimeout time.Duration
	// Disabled is the operational kill switch: every check reports valid
	// without touching the database
	Disabled bool
}

// Validator decides, cheaply and mostly from cache, whether a tenant's
// schema matches the catalog
type Validator struct {
	catalog      *Catalog
	store        VerdictStore
	introspector Introspector
	provider     DBProvider
	clock        base.Clock
	log          *logger.Logger
	metrics      *Metrics
	timeout      time.Duration
	disabled     bool

	inflightMu sync.Mutex
	inflight   map[string]*inflightCheck
}

// inflightCheck lets concurrent forced checks for the same tenant share one
// introspection pass instead of duplicating it
type inflightCheck struct {
	done    chan struct{}
	verdict *Verdict
	err     error
}

// NewValidator creates a Validator
func NewValidator(opts ValidatorOptions) *Validator {
	clock := opts.Clock
	if clock == nil {
		clock = base.SystemClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("tenantdb")
	}
	timeout := opts.IntrospectionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Validator{
		catalog:      opts.Catalog,
		store:        opts.Store,
		introspector: opts.Introspector,
		provider:     opts.Provider,
		clock:        clock,
		log:          log,
		metrics:      opts.Metrics,
		timeout:      timeout,
		disabled:     opts.Disabled,
		inflight:     make(map[string]*inflightCheck),
	}
}

// IsValid returns the schema verdict for a tenant. The common path is a
// cache hit with zero database access; introspection happens only on a
// cache miss with Force, or whenever Force is set.
func (v *Validator) IsValid(ctx context.Context, tenantKey string, opts CheckOptions) (*Verdict, error) {
	if err := base.ValidateTenantKey(tenantKey); err != nil {
		return nil, err
	}

	if v.disabled {
		return &Verdict{
			TenantKey:     tenantKey,
			Valid:         true,
			SchemaVersion: v.catalog.Version,
			CheckedAt:     v.clock.Now(),
		}, nil
	}

	if !opts.Force {
		if verdict, ok := v.store.Get(tenantKey); ok {
			return verdict, nil
		}
	}

	return v.checkOnce(ctx, tenantKey)
}

// checkOnce runs at most one concurrent introspection per tenant; late
// arrivals wait for the in-flight result
func (v *Validator) checkOnce(ctx context.Context, tenantKey string) (*Verdict, error) {
	v.inflightMu.Lock()
	if existing, ok := v.inflight[tenantKey]; ok {
		v.inflightMu.Unlock()
		select {
		case <-existing.done:
			return existing.verdict, existing.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	check := &inflightCheck{done: make(chan struct{})}
	v.inflight[tenantKey] = check
	v.inflightMu.Unlock()

	check.verdict, check.err = v.introspect(ctx, tenantKey)

	v.inflightMu.Lock()
	delete(v.inflight, tenantKey)
	v.inflightMu.Unlock()
	close(check.done)

	return check.verdict, check.err
}

// introspect reads the tenant's actual structure and produces a verdict.
// The check is one-directional: actual-is-superset is fine, actual-is-subset
// is the problem. Errors leave the cache untouched; an unreachable catalog
// means "unknown", never "invalid".
func (v *Validator) introspect(ctx context.Context, tenantKey string) (*Verdict, error) {
	db, err := v.provider.DB(ctx, tenantKey)
	if err != nil {
		return nil, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := v.clock.Now()
	var discrepancies []Discrepancy

	for _, table := range v.catalog.Tables() {
		actual, err := v.introspector.TableColumns(checkCtx, db, table.Name)
		if err != nil {
			return nil, base.NewSchemaIntrospectionError(tenantKey, table.Name, err)
		}

		if len(actual) == 0 {
			discrepancies = append(discrepancies, Discrepancy{Table: table.Name})
			continue
		}

		present := make(map[string]bool, len(actual))
		for _, col := range actual {
			present[col] = true
		}
		for _, col := range table.Columns {
			if !present[col.Name] {
				discrepancies = append(discrepancies, Discrepancy{Table: table.Name, Column: col.Name})
			}
		}
	}

	verdict := &Verdict{
		TenantKey:     tenantKey,
		Valid:         len(discrepancies) == 0,
		SchemaVersion: v.catalog.Version,
		Discrepancies: discrepancies,
		CheckedAt:     v.clock.Now(),
	}
	v.store.Set(tenantKey, verdict)

	if v.metrics != nil {
		v.metrics.ValidationsTotal.Inc()
		v.metrics.ValidationSeconds.Observe(v.clock.Now().Sub(start).Seconds())
		if !verdict.Valid {
			v.metrics.ValidationsFailed.Inc()
		}
	}

	v.log.InfoWithDuration(tenantKey, "", "Schema validation completed",
		float64(v.clock.Now().Sub(start).Milliseconds()), map[string]interface{}{
			"valid":         verdict.Valid,
			"discrepancies": len(discrepancies),
			"tables":        v.catalog.TableCount(),
		})

	return verdict, nil
}

// InvalidateCache clears one tenant's cached verdict
func (v *Validator) InvalidateCache(tenantKey string) {
	v.store.Invalidate(tenantKey)
}

// InvalidateAll clears every cached verdict
func (v *Validator) InvalidateAll() {
	v.store.InvalidateAll()
}

// Catalog returns the immutable catalog the validator checks against
func (v *Validator) Catalog() *Catalog {
	return v.catalog
}
