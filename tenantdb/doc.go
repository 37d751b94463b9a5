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
Package tenantdb is the entry point to LedgerHub's tenant-aware database
access layer. Business code asks it for a ready, schema-valid connection to
a tenant ("agency") database and issues its own queries from there.

# Usage

Construct one Service at startup and inject it; it is never a process
global:

	svc, err := tenantdb.NewService(tenantdb.ServiceOptions{
	    Config:  cfg,
	    Secrets: secrets,
	})

The convenience path handles schema drift transparently:

	err := svc.WithTenantConnection(ctx, "agency_acme", func(ctx context.Context, db *sql.DB) error {
	    _, err := db.ExecContext(ctx, "INSERT INTO invoices ...")
	    return err
	})

When the work function fails with a schema-shaped error (undefined table or
column), the service forces a validation pass, repairs any drift additively,
and retries the work exactly once. A healthy tenant and a tenant that was
just silently repaired are indistinguishable to the caller. If the retry
still fails, the original query error surfaces, never the repair machinery's.

Callers that manage their own retries use Acquire instead, which performs no
validation at all on the steady-state path:

	p, err := svc.Acquire(ctx, "agency_acme")

# Administrative Surface

ForceValidate, RepairSchema, ClearCache, PoolStats, and HealthCheck back the
admin API in package adminapi. They expose the repair detail the transparent
path deliberately hides.
*/
package tenantdb
