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
Package base provides the shared types for the tenant database access layer:
the error taxonomy, tenant key validation, and the clock abstraction used by
time-sensitive components.

# Error Taxonomy

Callers switch on error types, never on raw driver error codes:

  - PoolCreationError - tenant database unreachable at pool-create time
  - PoolExhaustedError - acquire timed out waiting for a free connection
  - SchemaIntrospectionError - could not read catalog metadata ("unknown", not "invalid")
  - SchemaRepairPartialFailure - one or more discrepancies could not be fixed
  - TenantKeyInvalidError - malformed or unsafe tenant identifier
  - QueryError - a classified query failure carrying an ErrorKind

# Error Classification

Driver-specific failures are classified into portable kinds:

	switch base.ClassifyError(err).Kind {
	case base.KindSchemaMissing: // undefined table/column - trigger validation
	case base.KindTransient:     // worth retrying with backoff
	case base.KindFatal:         // surface to the caller
	}

# Tenant Keys

Tenant keys name databases and appear inside DSNs and DDL, so they are
validated against a strict allow-list before any I/O:

	if err := base.ValidateTenantKey("agency_acme"); err != nil {
	    return err
	}
*/
package base
