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

package base

import (
	"regexp"
	"strings"
)

// MaxTenantKeyLength bounds tenant keys to the common database identifier
// limit (PostgreSQL truncates identifiers at 63 bytes).
const MaxTenantKeyLength = 63

// tenantKeyPattern is the allow-list for tenant keys. Keys end up inside
// connection strings and DDL identifiers, so anything outside lowercase
// alphanumerics and underscores is rejected outright.
var tenantKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedTenantKeys are database names a tenant must never claim
var reservedTenantKeys = map[string]bool{
	"postgres":           true,
	"template0":          true,
	"template1":          true,
	"mysql":              true,
	"sys":                true,
	"information_schema": true,
	"performance_schema": true,
}

// ValidateTenantKey rejects malformed or unsafe tenant identifiers before
// any I/O happens. Returns a TenantKeyInvalidError describing the first
// violation found.
func ValidateTenantKey(key string) error {
	if key == "" {
		return NewTenantKeyInvalidError(key, "key is empty")
	}

	if len(key) > MaxTenantKeyLength {
		return NewTenantKeyInvalidError(key, "key exceeds maximum length")
	}

	if !tenantKeyPattern.MatchString(key) {
		return NewTenantKeyInvalidError(key, "key must start with a lowercase letter and contain only lowercase letters, digits, and underscores")
	}

	if reservedTenantKeys[strings.ToLower(key)] {
		return NewTenantKeyInvalidError(key, "key is a reserved database name")
	}

	return nil
}
