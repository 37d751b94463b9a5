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
Package adminapi serves the operational HTTP surface of the tenant database
layer: forced validation, schema repair, cache clearing, pool statistics,
and per-tenant health. The admin UI and CLI consume it; business traffic
never goes through here.

# Endpoints

	GET    /health                          liveness probe (unauthenticated)
	GET    /metrics                         Prometheus metrics (unauthenticated)
	GET    /api/v1/pools                    pool registry snapshot
	GET    /api/v1/tenants/{tenant}/health  schema health summary
	POST   /api/v1/tenants/{tenant}/validate  forced validation
	POST   /api/v1/tenants/{tenant}/repair    validate and repair
	DELETE /api/v1/tenants/{tenant}/pool      force-close the tenant's pool
	DELETE /api/v1/cache                      clear all cached verdicts
	DELETE /api/v1/cache/{tenant}             clear one tenant's verdict

# Authentication

All /api/v1 routes require a bearer JWT signed with the HMAC secret from
ADMIN_JWT_SECRET, carrying a "role" claim of "admin". This surface exposes
repair failure detail that the business-facing path deliberately hides, so
it must never be reachable by end users.
*/
package adminapi
