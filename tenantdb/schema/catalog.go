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
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// identPattern restricts table and column names declared in the catalog to
// safe SQL identifiers. The catalog is trusted input, but its names are
// interpolated into DDL, so they get the same treatment as tenant keys.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// referencePattern matches a foreign key target of the form "table(column)"
var referencePattern = regexp.MustCompile(`^([a-z][a-z0-9_]*)\(([a-z][a-z0-9_]*)\)$`)

// LoadCatalog reads and validates the schema catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a schema catalog from YAML bytes
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse schema catalog: %w", err)
	}

	if catalog.Version == "" {
		return nil, fmt.Errorf("schema catalog has no version")
	}
	if len(catalog.Modules) == 0 {
		return nil, fmt.Errorf("schema catalog declares no modules")
	}

	if err := catalog.index(); err != nil {
		return nil, err
	}

	for _, table := range catalog.Tables() {
		if err := validateTable(&catalog, table); err != nil {
			return nil, err
		}
	}

	return &catalog, nil
}

// validateTable checks one table declaration: identifier safety, type
// validity, unique columns, and resolvable foreign key targets
func validateTable(catalog *Catalog, table TableDescriptor) error {
	if !identPattern.MatchString(table.Name) {
		return fmt.Errorf("table name %q is not a safe identifier", table.Name)
	}
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %q declares no columns", table.Name)
	}

	seen := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		if !identPattern.MatchString(col.Name) {
			return fmt.Errorf("column name %q in table %q is not a safe identifier", col.Name, table.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("column %q declared more than once in table %q", col.Name, table.Name)
		}
		seen[col.Name] = true

		if !knownColumnTypes[col.Type] {
			return fmt.Errorf("column %s.%s has unknown type %q", table.Name, col.Name, col.Type)
		}
		if col.Type == TypeVarchar && col.Length <= 0 {
			return fmt.Errorf("column %s.%s is varchar without a length", table.Name, col.Name)
		}

		if col.References != "" {
			m := referencePattern.FindStringSubmatch(col.References)
			if m == nil {
				return fmt.Errorf("column %s.%s has malformed reference %q, want \"table(column)\"", table.Name, col.Name, col.References)
			}
			refTable, refCol := m[1], m[2]
			target, ok := catalog.Table(refTable)
			if !ok {
				return fmt.Errorf("column %s.%s references unknown table %q", table.Name, col.Name, refTable)
			}
			if _, ok := target.Column(refCol); !ok {
				return fmt.Errorf("column %s.%s references unknown column %s.%s", table.Name, col.Name, refTable, refCol)
			}
		}
	}

	return nil
}

// ReferenceTarget splits a "table(column)" foreign key declaration. The
// catalog loader guarantees the format, so this never fails on a loaded
// catalog.
func ReferenceTarget(reference string) (table, column string, ok bool) {
	m := referencePattern.FindStringSubmatch(reference)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// moduleNames returns the declared module names, used by health reporting
func (c *Catalog) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		names = append(names, m.Name)
	}
	return names
}

// String renders a short human-readable summary of the catalog
func (c *Catalog) String() string {
	return fmt.Sprintf("schema catalog v%s (%d modules, %d tables: %s)",
		c.Version, len(c.Modules), c.TableCount(), strings.Join(c.ModuleNames(), ", "))
}
