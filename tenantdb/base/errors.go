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
	"errors"
	"strconv"
	"time"
)

// ErrorKind classifies a query failure independently of the database driver
type ErrorKind string

const (
	// KindSchemaMissing covers undefined table/column/function failures.
	// These trigger the validate-repair-retry path.
	KindSchemaMissing ErrorKind = "schema_missing"
	// KindTransient covers failures worth retrying with backoff
	// (serialization, deadlock, connection reset).
	KindTransient ErrorKind = "transient"
	// KindFatal covers everything else; surfaced to the caller unmodified.
	KindFatal ErrorKind = "fatal"
)

// QueryError wraps a query failure with its classified kind
type QueryError struct {
	TenantKey string
	Kind      ErrorKind
	Cause     error
}

func (e *QueryError) Error() string {
	return "tenant " + e.TenantKey + ": " + string(e.Kind) + " query error: " + e.Cause.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a classified QueryError
func NewQueryError(tenantKey string, kind ErrorKind, cause error) *QueryError {
	return &QueryError{TenantKey: tenantKey, Kind: kind, Cause: cause}
}

// IsSchemaMissing reports whether err is a QueryError classified as
// KindSchemaMissing anywhere in its chain
func IsSchemaMissing(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == KindSchemaMissing
	}
	return false
}

// PoolCreationError indicates the tenant database was unreachable when a
// connection pool was being created. Not retried internally.
type PoolCreationError struct {
	TenantKey string
	Cause     error
}

func (e *PoolCreationError) Error() string {
	return "failed to create pool for tenant " + e.TenantKey + ": " + e.Cause.Error()
}

func (e *PoolCreationError) Unwrap() error {
	return e.Cause
}

// NewPoolCreationError creates a PoolCreationError
func NewPoolCreationError(tenantKey string, cause error) *PoolCreationError {
	return &PoolCreationError{TenantKey: tenantKey, Cause: cause}
}

// PoolExhaustedError indicates acquiring a connection timed out because the
// tenant's pool was at its connection limit
type PoolExhaustedError struct {
	TenantKey string
	Timeout   time.Duration
	Cause     error
}

func (e *PoolExhaustedError) Error() string {
	return "pool exhausted for tenant " + e.TenantKey + " after " + e.Timeout.String() + ": " + e.Cause.Error()
}

func (e *PoolExhaustedError) Unwrap() error {
	return e.Cause
}

// NewPoolExhaustedError creates a PoolExhaustedError
func NewPoolExhaustedError(tenantKey string, timeout time.Duration, cause error) *PoolExhaustedError {
	return &PoolExhaustedError{TenantKey: tenantKey, Timeout: timeout, Cause: cause}
}

// SchemaIntrospectionError indicates catalog metadata could not be read.
// The schema state is unknown, not invalid; verdict caches must stay untouched.
type SchemaIntrospectionError struct {
	TenantKey string
	Table     string
	Cause     error
}

func (e *SchemaIntrospectionError) Error() string {
	msg := "schema introspection failed for tenant " + e.TenantKey
	if e.Table != "" {
		msg += ", table " + e.Table
	}
	return msg + ": " + e.Cause.Error()
}

func (e *SchemaIntrospectionError) Unwrap() error {
	return e.Cause
}

// NewSchemaIntrospectionError creates a SchemaIntrospectionError
func NewSchemaIntrospectionError(tenantKey, table string, cause error) *SchemaIntrospectionError {
	return &SchemaIntrospectionError{TenantKey: tenantKey, Table: table, Cause: cause}
}

// SchemaRepairPartialFailure indicates some discrepancies could not be fixed
// during a repair pass. The repaired columns remain usable; the failure
// detail lives in the repair report, not here.
type SchemaRepairPartialFailure struct {
	TenantKey string
	Applied   int
	Failed    int
}

func (e *SchemaRepairPartialFailure) Error() string {
	return "schema repair for tenant " + e.TenantKey + " partially failed: " +
		strconv.Itoa(e.Failed) + " of " + strconv.Itoa(e.Applied+e.Failed) + " statements failed"
}

// NewSchemaRepairPartialFailure creates a SchemaRepairPartialFailure
func NewSchemaRepairPartialFailure(tenantKey string, applied, failed int) *SchemaRepairPartialFailure {
	return &SchemaRepairPartialFailure{TenantKey: tenantKey, Applied: applied, Failed: failed}
}

// TenantKeyInvalidError indicates a malformed or unsafe tenant identifier,
// rejected before any I/O
type TenantKeyInvalidError struct {
	Key    string
	Reason string
}

func (e *TenantKeyInvalidError) Error() string {
	return "invalid tenant key " + strconv.Quote(e.Key) + ": " + e.Reason
}

// NewTenantKeyInvalidError creates a TenantKeyInvalidError
func NewTenantKeyInvalidError(key, reason string) *TenantKeyInvalidError {
	return &TenantKeyInvalidError{Key: key, Reason: reason}
}
