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
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"ledgerhub/platform/tenantdb/base"
)

// Dialect abstracts the database-specific pieces of introspection and DDL
// generation, keeping the validator and sync engine portable across drivers
type Dialect interface {
	// Name is the dialect identifier ("postgres", "mysql")
	Name() string
	// Driver is the database/sql driver name to open connections with
	Driver() string
	// QuoteIdent quotes a SQL identifier
	QuoteIdent(ident string) string
	// ColumnsQuery is the introspection statement returning the column
	// names of one table, taking the table name as its only parameter
	ColumnsQuery() string
	// CreateTableSQL renders an idempotent CREATE TABLE for a descriptor
	CreateTableSQL(table TableDescriptor) (string, error)
	// AddColumnSQL renders an ALTER TABLE ... ADD COLUMN for a descriptor
	AddColumnSQL(table string, col ColumnDescriptor) (string, error)
	// ClassifyError maps a driver error to a portable ErrorKind
	ClassifyError(err error) base.ErrorKind
}

// DialectByName returns the dialect for a configured name
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return PostgresDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown database dialect %q", name)
	}
}

// columnDDL renders the shared column clause: quoted name, mapped type,
// nullability, and default. NOT NULL columns without a declared default get
// a type-appropriate backfill default so existing rows are never left
// invalid when the column is added to a populated table.
func columnDDL(d Dialect, col ColumnDescriptor, sqlType string) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(sqlType)

	defaultExpr := col.Default
	if defaultExpr == "" && !col.Nullable && !col.PrimaryKey {
		defaultExpr = backfillDefault(col.Type)
	}
	if defaultExpr != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultExpr)
	}

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}

	return b.String()
}

// backfillDefault picks the safe backfill literal for a logical type:
// empty string for text, zero for numerics, now for temporals
func backfillDefault(t ColumnType) string {
	switch t {
	case TypeText, TypeVarchar:
		return "''"
	case TypeInteger, TypeBigint, TypeNumeric:
		return "0"
	case TypeBoolean:
		return "FALSE"
	case TypeTimestamp, TypeDate:
		return "CURRENT_TIMESTAMP"
	case TypeJSON:
		return "'{}'"
	default:
		return ""
	}
}

// PostgresDialect targets PostgreSQL via lib/pq
type PostgresDialect struct{}

func (PostgresDialect) Name() string   { return "postgres" }
func (PostgresDialect) Driver() string { return "postgres" }

func (PostgresDialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (PostgresDialect) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
}

func (d PostgresDialect) columnType(col ColumnDescriptor) (string, error) {
	switch col.Type {
	case TypeText:
		return "TEXT", nil
	case TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", col.Length), nil
	case TypeInteger:
		return "INTEGER", nil
	case TypeBigint:
		return "BIGINT", nil
	case TypeNumeric:
		if col.Length > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", col.Length, col.Scale), nil
		}
		return "NUMERIC", nil
	case TypeBoolean:
		return "BOOLEAN", nil
	case TypeTimestamp:
		return "TIMESTAMPTZ", nil
	case TypeDate:
		return "DATE", nil
	case TypeUUID:
		return "UUID", nil
	case TypeJSON:
		return "JSONB", nil
	default:
		return "", fmt.Errorf("no postgres mapping for column type %q", col.Type)
	}
}

func (d PostgresDialect) CreateTableSQL(table TableDescriptor) (string, error) {
	cols := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		sqlType, err := d.columnType(col)
		if err != nil {
			return "", err
		}
		clause := columnDDL(d, col, sqlType)
		if col.PrimaryKey {
			clause += " PRIMARY KEY"
		}
		if col.References != "" {
			refTable, refCol, _ := ReferenceTarget(col.References)
			clause += fmt.Sprintf(" REFERENCES %s(%s)", d.QuoteIdent(refTable), d.QuoteIdent(refCol))
		}
		cols = append(cols, clause)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table.Name), strings.Join(cols, ", ")), nil
}

func (d PostgresDialect) AddColumnSQL(table string, col ColumnDescriptor) (string, error) {
	sqlType, err := d.columnType(col)
	if err != nil {
		return "", err
	}
	clause := columnDDL(d, col, sqlType)
	if col.References != "" {
		refTable, refCol, _ := ReferenceTarget(col.References)
		clause += fmt.Sprintf(" REFERENCES %s(%s)", d.QuoteIdent(refTable), d.QuoteIdent(refCol))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", d.QuoteIdent(table), clause), nil
}

// Postgres error classes: 42 covers undefined objects, 40 covers
// serialization failures, 08 covers connection failures.
func (PostgresDialect) ClassifyError(err error) base.ErrorKind {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return base.KindFatal
	}

	switch string(pqErr.Code) {
	case "42P01", // undefined_table
		"42703", // undefined_column
		"42883": // undefined_function
		return base.KindSchemaMissing
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"57014": // query_canceled
		return base.KindTransient
	}

	if strings.HasPrefix(string(pqErr.Code), "08") { // connection exceptions
		return base.KindTransient
	}

	return base.KindFatal
}

// MySQLDialect targets MySQL via go-sql-driver/mysql
type MySQLDialect struct{}

func (MySQLDialect) Name() string   { return "mysql" }
func (MySQLDialect) Driver() string { return "mysql" }

func (MySQLDialect) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQLDialect) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`
}

func (d MySQLDialect) columnType(col ColumnDescriptor) (string, error) {
	switch col.Type {
	case TypeText:
		return "TEXT", nil
	case TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", col.Length), nil
	case TypeInteger:
		return "INT", nil
	case TypeBigint:
		return "BIGINT", nil
	case TypeNumeric:
		if col.Length > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", col.Length, col.Scale), nil
		}
		return "DECIMAL(18,4)", nil
	case TypeBoolean:
		return "TINYINT(1)", nil
	case TypeTimestamp:
		return "TIMESTAMP", nil
	case TypeDate:
		return "DATE", nil
	case TypeUUID:
		return "CHAR(36)", nil
	case TypeJSON:
		return "JSON", nil
	default:
		return "", fmt.Errorf("no mysql mapping for column type %q", col.Type)
	}
}

func (d MySQLDialect) CreateTableSQL(table TableDescriptor) (string, error) {
	cols := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		sqlType, err := d.columnType(col)
		if err != nil {
			return "", err
		}
		clause := columnDDL(d, col, sqlType)
		if col.PrimaryKey {
			clause += " PRIMARY KEY"
		}
		if col.References != "" {
			refTable, refCol, _ := ReferenceTarget(col.References)
			clause += fmt.Sprintf(" REFERENCES %s(%s)", d.QuoteIdent(refTable), d.QuoteIdent(refCol))
		}
		cols = append(cols, clause)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table.Name), strings.Join(cols, ", ")), nil
}

// MySQL has no ADD COLUMN IF NOT EXISTS; idempotency comes from the sync
// engine only adding columns a fresh verdict reported missing.
func (d MySQLDialect) AddColumnSQL(table string, col ColumnDescriptor) (string, error) {
	sqlType, err := d.columnType(col)
	if err != nil {
		return "", err
	}
	clause := columnDDL(d, col, sqlType)
	if col.References != "" {
		refTable, refCol, _ := ReferenceTarget(col.References)
		clause += fmt.Sprintf(" REFERENCES %s(%s)", d.QuoteIdent(refTable), d.QuoteIdent(refCol))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), clause), nil
}

func (MySQLDialect) ClassifyError(err error) base.ErrorKind {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return base.KindFatal
	}

	switch myErr.Number {
	case 1146, // ER_NO_SUCH_TABLE
		1054, // ER_BAD_FIELD_ERROR
		1305: // ER_SP_DOES_NOT_EXIST
		return base.KindSchemaMissing
	case 1213, // ER_LOCK_DEADLOCK
		1205, // ER_LOCK_WAIT_TIMEOUT
		1040, // ER_CON_COUNT_ERROR
		2006, // CR_SERVER_GONE_ERROR
		2013: // CR_SERVER_LOST
		return base.KindTransient
	}

	return base.KindFatal
}
