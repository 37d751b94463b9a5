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

// Package main is the entry point for the LedgerHub tenant database daemon.
//
// tenantdbd hosts the tenant-aware database access layer and its
// administrative API:
// - Bounded per-tenant connection pools with LRU eviction and idle sweep
// - Schema validation against the declarative catalog, with cached verdicts
// - Additive-only schema repair
// - Admin endpoints for validation, repair, cache and pool management
// - Prometheus metrics on /metrics
//
// Usage:
//
//	./tenantdbd -config /etc/ledgerhub/tenantdb.yaml
//
// Environment Variables:
//
//	TENANTDB_CONFIG - config file path (overrides -config)
//	TENANTDB_DB_HOST, TENANTDB_DB_PORT, TENANTDB_DIALECT - database overrides
//	TENANTDB_REDIS_ADDR - shared verdict cache address
//	TENANTDB_ADMIN_ADDR - admin API listen address (default :8084)
//	TENANTDB_DISABLE_VALIDATION - schema validation kill switch
//	ADMIN_JWT_SECRET - HMAC secret for admin API tokens
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"ledgerhub/platform/adminapi"
	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb"
)

func main() {
	configPath := flag.String("config", "/etc/ledgerhub/tenantdb.yaml", "path to the tenantdb config file")
	flag.Parse()

	if v := os.Getenv("TENANTDB_CONFIG"); v != "" {
		*configPath = v
	}

	log := logger.New("tenantdbd")

	cfg, err := tenantdb.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("", "", "Failed to load configuration", err, map[string]interface{}{
			"path": *configPath,
		})
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	svc, err := tenantdb.NewService(tenantdb.ServiceOptions{
		Config:      cfg,
		Logger:      log,
		RedisClient: redisClient,
	})
	if err != nil {
		log.ErrorWithErr("", "", "Failed to start tenant database layer", err, nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Admin.Addr
	if addr == "" {
		addr = ":8084"
	}

	server := adminapi.NewServer(svc, log, nil)
	if err := server.ListenAndServe(ctx, addr); err != nil {
		log.ErrorWithErr("", "", "Admin API server failed", err, nil)
	}

	svc.Shutdown(context.Background())
}
