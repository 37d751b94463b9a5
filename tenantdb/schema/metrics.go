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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the schema subsystem's Prometheus collectors. A nil
// *Metrics disables instrumentation.
type Metrics struct {
	ValidationsTotal  prometheus.Counter
	ValidationsFailed prometheus.Counter
	ValidationSeconds prometheus.Histogram
	RepairsApplied    prometheus.Counter
	RepairsFailed     prometheus.Counter
}

// NewMetrics creates and registers the schema collectors. Pass a dedicated
// Registerer in tests; nil uses the process-default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ValidationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_schema_validations_total",
			Help: "Total schema introspection passes",
		}),
		ValidationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_schema_validations_invalid_total",
			Help: "Introspection passes that found discrepancies",
		}),
		ValidationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenantdb_schema_validation_seconds",
			Help:    "Duration of one full introspection pass",
			Buckets: prometheus.DefBuckets,
		}),
		RepairsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_schema_repair_statements_applied_total",
			Help: "Repair DDL statements applied successfully",
		}),
		RepairsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_schema_repair_statements_failed_total",
			Help: "Repair DDL statements that failed",
		}),
	}

	reg.MustRegister(
		m.ValidationsTotal,
		m.ValidationsFailed,
		m.ValidationSeconds,
		m.RepairsApplied,
		m.RepairsFailed,
	)

	return m
}
