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
	"fmt"
	"time"

	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb/base"
)

// Execer is the subset of *sql.DB that DDL application needs
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// StatementResult records the outcome of one DDL statement in a repair pass
type StatementResult struct {
	Table     string `json:"table"`
	Column    string `json:"column,omitempty"`
	Statement string `json:"statement"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
}

// RepairReport summarizes one repair pass. Partial failure is a reported
// condition, not an error: the statements that did apply stay applied.
type RepairReport struct {
	TenantKey  string            `json:"tenant_key"`
	Applied    int               `json:"applied"`
	Failed     int               `json:"failed"`
	Statements []StatementResult `json:"statements,omitempty"`
	Duration   time.Duration     `json:"duration"`
	StartedAt  time.Time         `json:"started_at"`
}

// PartialFailure returns the typed error describing a partly failed pass,
// or nil if everything applied. Exposed for the administrative surface;
// the facade never forwards it to business callers.
func (r *RepairReport) PartialFailure() error {
	if r.Failed == 0 {
		return nil
	}
	return base.NewSchemaRepairPartialFailure(r.TenantKey, r.Applied, r.Failed)
}

// SyncEngineOptions configures a SyncEngine
type SyncEngineOptions struct {
	Catalog  *Catalog
	Dialect  Dialect
	Provider DBProvider
	Clock    base.Clock
	Logger   *logger.Logger
	Metrics  *Metrics
	// DDLTimeout bounds each individual DDL statement. DDL can
	// legitimately run longer than normal queries, so this is separate
	// from query timeouts.
	DDLTimeout time.Duration
}

// SyncEngine converts a failing verdict into additive DDL and applies it.
// It only ever creates tables and adds columns; it never drops, renames, or
// retypes anything, so running it against a conformant schema is a no-op.
type SyncEngine struct {
	catalog    *Catalog
	dialect    Dialect
	provider   DBProvider
	clock      base.Clock
	log        *logger.Logger
	metrics    *Metrics
	ddlTimeout time.Duration
}

// NewSyncEngine creates a SyncEngine
func NewSyncEngine(opts SyncEngineOptions) *SyncEngine {
	clock := opts.Clock
	if clock == nil {
		clock = base.SystemClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("tenantdb")
	}
	timeout := opts.DDLTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &SyncEngine{
		catalog:    opts.Catalog,
		dialect:    opts.Dialect,
		provider:   opts.Provider,
		clock:      clock,
		log:        log,
		metrics:    opts.Metrics,
		ddlTimeout: timeout,
	}
}

// Repair applies the minimal additive DDL for a verdict's discrepancies.
// Statements run one at a time; a failure is recorded and the pass moves on
// to the next statement, so one bad column (say, a foreign key whose target
// table does not exist yet) never blocks unrelated repairs. Only a total
// inability to reach the tenant database is a hard error.
func (e *SyncEngine) Repair(ctx context.Context, tenantKey string, verdict *Verdict) (*RepairReport, error) {
	if err := base.ValidateTenantKey(tenantKey); err != nil {
		return nil, err
	}

	report := &RepairReport{
		TenantKey: tenantKey,
		StartedAt: e.clock.Now(),
	}

	if verdict == nil || verdict.Valid || len(verdict.Discrepancies) == 0 {
		return report, nil
	}

	db, err := e.provider.DB(ctx, tenantKey)
	if err != nil {
		return nil, err
	}

	statements, err := e.plan(verdict.Discrepancies)
	if err != nil {
		return nil, err
	}

	for _, stmt := range statements {
		result := e.apply(ctx, db, stmt)
		report.Statements = append(report.Statements, result)
		if result.Applied {
			report.Applied++
			if e.metrics != nil {
				e.metrics.RepairsApplied.Inc()
			}
		} else {
			if e.metrics != nil {
				e.metrics.RepairsFailed.Inc()
			}
			report.Failed++
			e.log.Warn(tenantKey, "", "Repair statement failed, continuing", map[string]interface{}{
				"table":  result.Table,
				"column": result.Column,
				"error":  result.Error,
			})
		}
	}

	report.Duration = e.clock.Now().Sub(report.StartedAt)

	e.log.Info(tenantKey, "", "Schema repair completed", map[string]interface{}{
		"applied":  report.Applied,
		"failed":   report.Failed,
		"duration": report.Duration.String(),
	})

	return report, nil
}

// plannedStatement pairs a DDL string with the discrepancy it fixes
type plannedStatement struct {
	table     string
	column    string
	statement string
}

// plan orders the DDL: whole tables first, then columns, so a column whose
// table was also missing lands after its CREATE TABLE
func (e *SyncEngine) plan(discrepancies []Discrepancy) ([]plannedStatement, error) {
	var tables, columns []plannedStatement
	createdTables := make(map[string]bool)

	for _, d := range discrepancies {
		if d.Column != "" {
			continue
		}
		desc, ok := e.catalog.Table(d.Table)
		if !ok {
			return nil, fmt.Errorf("discrepancy names unknown table %q", d.Table)
		}
		stmt, err := e.dialect.CreateTableSQL(*desc)
		if err != nil {
			return nil, err
		}
		tables = append(tables, plannedStatement{table: d.Table, statement: stmt})
		createdTables[d.Table] = true
	}

	for _, d := range discrepancies {
		if d.Column == "" {
			continue
		}
		// A freshly created table already carries all its columns
		if createdTables[d.Table] {
			continue
		}
		desc, ok := e.catalog.Table(d.Table)
		if !ok {
			return nil, fmt.Errorf("discrepancy names unknown table %q", d.Table)
		}
		col, ok := desc.Column(d.Column)
		if !ok {
			return nil, fmt.Errorf("discrepancy names unknown column %s.%s", d.Table, d.Column)
		}
		stmt, err := e.dialect.AddColumnSQL(d.Table, *col)
		if err != nil {
			return nil, err
		}
		columns = append(columns, plannedStatement{table: d.Table, column: d.Column, statement: stmt})
	}

	return append(tables, columns...), nil
}

// apply executes one DDL statement under the DDL timeout
func (e *SyncEngine) apply(ctx context.Context, db Execer, stmt plannedStatement) StatementResult {
	result := StatementResult{
		Table:     stmt.table,
		Column:    stmt.column,
		Statement: stmt.statement,
	}

	ddlCtx, cancel := context.WithTimeout(ctx, e.ddlTimeout)
	defer cancel()

	if _, err := db.ExecContext(ddlCtx, stmt.statement); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Applied = true
	return result
}
