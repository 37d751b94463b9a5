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
	"fmt"
	"time"
)

// ColumnType is the logical, dialect-independent type of a column
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeVarchar   ColumnType = "varchar"
	TypeInteger   ColumnType = "integer"
	TypeBigint    ColumnType = "bigint"
	TypeNumeric   ColumnType = "numeric"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeDate      ColumnType = "date"
	TypeUUID      ColumnType = "uuid"
	TypeJSON      ColumnType = "json"
)

// knownColumnTypes is the allow-list the catalog loader validates against
var knownColumnTypes = map[ColumnType]bool{
	TypeText:      true,
	TypeVarchar:   true,
	TypeInteger:   true,
	TypeBigint:    true,
	TypeNumeric:   true,
	TypeBoolean:   true,
	TypeTimestamp: true,
	TypeDate:      true,
	TypeUUID:      true,
	TypeJSON:      true,
}

// ColumnDescriptor describes one expected column
type ColumnDescriptor struct {
	Name       string     `yaml:"name"`
	Type       ColumnType `yaml:"type"`
	Length     int        `yaml:"length,omitempty"`     // for varchar/numeric precision
	Scale      int        `yaml:"scale,omitempty"`      // for numeric
	Nullable   bool       `yaml:"nullable,omitempty"`
	Default    string     `yaml:"default,omitempty"`    // dialect-neutral default expression
	References string     `yaml:"references,omitempty"` // "table(column)" foreign key target
	PrimaryKey bool       `yaml:"primary_key,omitempty"`
}

// TableDescriptor describes one expected table with its ordered columns
type TableDescriptor struct {
	Name    string             `yaml:"name"`
	Columns []ColumnDescriptor `yaml:"columns"`
}

// Column returns the descriptor of the named column, if present
func (t *TableDescriptor) Column(name string) (*ColumnDescriptor, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ModuleDescriptor groups tables into a logical schema module (auth, hr,
// finance, ...). Grouping is organizational only; validation flattens it.
type ModuleDescriptor struct {
	Name   string            `yaml:"name"`
	Tables []TableDescriptor `yaml:"tables"`
}

// Catalog is the full expected schema for a tenant database. Loaded once at
// process start; read-only afterward, so it is safe to share across
// goroutines without locking.
type Catalog struct {
	Version string             `yaml:"version"`
	Modules []ModuleDescriptor `yaml:"modules"`

	flat   []TableDescriptor
	byName map[string]*TableDescriptor
}

// Tables returns every table in the catalog as one flattened, stable-order
// slice
func (c *Catalog) Tables() []TableDescriptor {
	return c.flat
}

// Table returns the descriptor of the named table, if present
func (c *Catalog) Table(name string) (*TableDescriptor, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// TableCount returns the number of tables in the catalog
func (c *Catalog) TableCount() int {
	return len(c.flat)
}

// index builds the flattened views; called once by the loader
func (c *Catalog) index() error {
	c.flat = nil
	c.byName = make(map[string]*TableDescriptor)
	seen := make(map[string]bool)
	for _, m := range c.Modules {
		for _, t := range m.Tables {
			if seen[t.Name] {
				return fmt.Errorf("table %q declared more than once", t.Name)
			}
			seen[t.Name] = true
			c.flat = append(c.flat, t)
		}
	}
	// byName points into flat, so it is built only after flat stops growing
	for i := range c.flat {
		c.byName[c.flat[i].Name] = &c.flat[i]
	}
	return nil
}

// Discrepancy is one missing table or missing column found during a
// validation pass. Column is empty when the whole table is missing.
type Discrepancy struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
}

func (d Discrepancy) String() string {
	if d.Column == "" {
		return "missing table " + d.Table
	}
	return "missing column " + d.Table + "." + d.Column
}

// Verdict is the outcome of one validation pass for one tenant. Verdicts are
// immutable once produced; the cache replaces them wholesale.
type Verdict struct {
	TenantKey     string        `json:"tenant_key"`
	Valid         bool          `json:"valid"`
	SchemaVersion string        `json:"schema_version"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	CheckedAt     time.Time     `json:"checked_at"`
}
