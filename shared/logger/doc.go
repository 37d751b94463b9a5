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
Package logger provides structured JSON logging with per-tenant context
for LedgerHub platform components.

# Overview

Every log entry is a single JSON line on stdout, ready for CloudWatch,
ELK, or any other log aggregation pipeline.

Each entry carries:
  - Timestamp (RFC3339Nano)
  - Level (DEBUG, INFO, WARN, ERROR)
  - Component name (tenantdb, adminapi, etc.)
  - Instance ID and container name
  - Tenant ID (for multi-tenant isolation)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("tenantdb")

Log with tenant and request context:

	log.Info("agency_acme", "req-456", "Pool created", map[string]interface{}{
	    "max_conns": 5,
	})

Log errors:

	log.ErrorWithErr("agency_acme", "req-456", "Schema repair failed", err, nil)

# Environment Variables

  - INSTANCE_ID: deployment instance identifier
  - HOSTNAME: container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
