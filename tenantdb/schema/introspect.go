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
)

// Querier is the subset of *sql.DB that introspection needs
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Introspector reads the actual column names of a table from a tenant
// database's catalog metadata. An empty result means the table does not
// exist.
type Introspector interface {
	TableColumns(ctx context.Context, db Querier, table string) ([]string, error)
}

// catalogIntrospector queries information_schema through the dialect
type catalogIntrospector struct {
	dialect Dialect
}

// NewIntrospector creates the standard information_schema introspector for
// a dialect
func NewIntrospector(dialect Dialect) Introspector {
	return &catalogIntrospector{dialect: dialect}
}

func (i *catalogIntrospector) TableColumns(ctx context.Context, db Querier, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, i.dialect.ColumnsQuery(), table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}
