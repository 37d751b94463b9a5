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

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registry's Prometheus collectors. Construct with
// NewMetrics; a nil *Metrics disables instrumentation.
type Metrics struct {
	ActivePools    prometheus.Gauge
	PoolsCreated   prometheus.Counter
	PoolsEvicted   prometheus.Counter
	IdleSweeps     prometheus.Counter
	LookupHits     prometheus.Counter
	LookupMisses   prometheus.Counter
	AcquireLatency prometheus.Histogram
}

// NewMetrics creates and registers the pool registry collectors. Pass a
// dedicated Registerer in tests; nil uses the process-default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ActivePools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenantdb_active_pools",
			Help: "Number of live tenant connection pools",
		}),
		PoolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_pools_created_total",
			Help: "Total tenant pools created",
		}),
		PoolsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_pools_evicted_total",
			Help: "Total tenant pools evicted or swept",
		}),
		IdleSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_idle_sweeps_total",
			Help: "Total idle sweep passes",
		}),
		LookupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_pool_lookup_hits_total",
			Help: "Pool lookups served by an existing pool",
		}),
		LookupMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenantdb_pool_lookup_misses_total",
			Help: "Pool lookups that required creating a pool",
		}),
		AcquireLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tenantdb_pool_acquire_seconds",
			Help:    "Latency of GetOrCreate calls",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ActivePools,
		m.PoolsCreated,
		m.PoolsEvicted,
		m.IdleSweeps,
		m.LookupHits,
		m.LookupMisses,
		m.AcquireLatency,
	)

	return m
}
