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
Package schema keeps every tenant database structurally in line with the
platform's declarative schema catalog.

# Overview

Three pieces cooperate:

  - Catalog: the expected tables and columns, loaded once at process start
    from a YAML definition and immutable afterward. Tables are grouped into
    named modules (auth, hr, finance, ...) but validated as a flattened set.
  - Validator: decides, mostly from a TTL cache, whether a tenant's schema
    matches the catalog. When it must look, it reads the tenant's
    information_schema and reports everything expected-but-absent. Extra
    columns are never flagged; the check is strictly one-directional.
  - SyncEngine: converts a failing verdict into additive DDL (CREATE TABLE,
    ADD COLUMN) and applies it statement by statement, continuing past
    per-statement failures. It never drops, renames, or retypes anything.

# Validation Triggers

Validation never runs on the steady-state query path. It runs only when a
caller forces a check or when a query fails with a schema-shaped error and
the request is on its single retry. Concurrent forced checks for the same
tenant share one introspection pass.

# Dialects

Postgres and MySQL dialects supply identifier quoting, column type mapping,
introspection queries, and driver error classification, so everything above
them stays portable.
*/
package schema
