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

package tenantdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb/base"
	"ledgerhub/platform/tenantdb/pool"
	"ledgerhub/platform/tenantdb/schema"
)

// WorkFunc is business work executed against a tenant database
type WorkFunc func(ctx context.Context, db *sql.DB) error

// HealthStatus is the per-tenant health summary exposed to administrators
type HealthStatus struct {
	TenantKey     string `json:"tenant_key"`
	Valid         bool   `json:"valid"`
	SchemaVersion string `json:"schema_version"`
	TableCount    int    `json:"table_count"`
}

// ServiceOptions configures NewService. Config and Secrets are required;
// everything else has working defaults.
type ServiceOptions struct {
	Config  *Config
	Secrets SecretsManager
	Logger  *logger.Logger
	Clock   base.Clock
	// Catalog overrides loading from Config.Schema.CatalogPath
	Catalog *schema.Catalog
	// Opener overrides DSN-based pool creation, for tests
	Opener pool.Opener
	// RedisClient enables the shared verdict cache across replicas
	RedisClient *redis.Client
	// MetricsRegisterer receives the Prometheus collectors; nil uses
	// the process default, false-y tests pass their own
	MetricsRegisterer prometheus.Registerer
	// DisableMetrics skips collector registration entirely
	DisableMetrics bool
}

// Service is the single entry point business callers use: "get me a ready
// connection for tenant X". It orchestrates the pool registry and the
// schema subsystem; validation runs only on its trigger conditions, never
// on the steady-state query path.
type Service struct {
	cfg       *Config
	dialect   schema.Dialect
	registry  *pool.Registry
	validator *schema.Validator
	syncer    *schema.SyncEngine
	secrets   SecretsManager
	log       *logger.Logger
	clock     base.Clock

	sweepCancel context.CancelFunc
}

// NewService wires the full tenant database layer from configuration and
// starts the idle sweeper. Call Shutdown when done.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("tenantdb: Config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.New("tenantdb")
	}
	clock := opts.Clock
	if clock == nil {
		clock = base.SystemClock()
	}

	dialect, err := schema.DialectByName(opts.Config.Dialect)
	if err != nil {
		return nil, err
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog, err = schema.LoadCatalog(opts.Config.Schema.CatalogPath)
		if err != nil {
			return nil, err
		}
	}

	secrets := opts.Secrets
	if secrets == nil {
		secrets, err = NewSecretsManager(context.Background(), opts.Config.Database, log)
		if err != nil {
			return nil, err
		}
	}

	var metrics *pool.Metrics
	var schemaMetrics *schema.Metrics
	if !opts.DisableMetrics {
		metrics = pool.NewMetrics(opts.MetricsRegisterer)
		schemaMetrics = schema.NewMetrics(opts.MetricsRegisterer)
	}

	svc := &Service{
		cfg:     opts.Config,
		dialect: dialect,
		secrets: secrets,
		log:     log,
		clock:   clock,
	}

	opener := opts.Opener
	if opener == nil {
		opener = svc.openTenantDB
	}

	svc.registry = pool.NewRegistry(opener, pool.Options{
		MaxPools:            opts.Config.Pool.MaxPools,
		MaxConnsPerPool:     opts.Config.Pool.MaxConnsPerPool,
		MaxIdleConnsPerPool: opts.Config.Pool.MaxIdleConnsPerPool,
		ConnMaxLifetime:     durationOrDefault(opts.Config.Pool.ConnMaxLifetimeMs, 30*time.Minute),
		IdleTimeout:         durationOrDefault(opts.Config.Pool.IdleTimeoutMs, 30*time.Minute),
		EvictFraction:       opts.Config.Pool.EvictFraction,
		DrainTimeout:        durationOrDefault(opts.Config.Pool.DrainTimeoutMs, 5*time.Second),
		Clock:               clock,
		Logger:              log,
		Metrics:             metrics,
	})

	var store schema.VerdictStore
	if opts.RedisClient != nil {
		store = schema.NewRedisVerdictStore(opts.RedisClient, opts.Config.VerdictTTL(), log)
	} else {
		store = schema.NewVerdictCache(opts.Config.VerdictTTL(), clock)
	}

	provider := &registryProvider{svc: svc}

	svc.validator = schema.NewValidator(schema.ValidatorOptions{
		Catalog:              catalog,
		Store:                store,
		Introspector:         schema.NewIntrospector(dialect),
		Provider:             provider,
		Clock:                clock,
		Logger:               log,
		Metrics:              schemaMetrics,
		IntrospectionTimeout: opts.Config.IntrospectionTimeout(),
		Disabled:             opts.Config.Schema.DisableValidation,
	})

	svc.syncer = schema.NewSyncEngine(schema.SyncEngineOptions{
		Catalog:    catalog,
		Dialect:    dialect,
		Provider:   provider,
		Clock:      clock,
		Logger:     log,
		Metrics:    schemaMetrics,
		DDLTimeout: opts.Config.DDLTimeout(),
	})

	sweepCtx, cancel := context.WithCancel(context.Background())
	svc.sweepCancel = cancel
	svc.registry.StartIdleSweeper(sweepCtx, opts.Config.SweepInterval())

	log.Info("", "", "Tenant database layer ready", map[string]interface{}{
		"dialect":        dialect.Name(),
		"schema_version": catalog.Version,
		"tables":         catalog.TableCount(),
	})

	return svc, nil
}

// registryProvider adapts the pool registry to the schema subsystem's
// DBProvider without creating an import cycle
type registryProvider struct {
	svc *Service
}

func (p *registryProvider) DB(ctx context.Context, tenantKey string) (*sql.DB, error) {
	tp, err := p.svc.registry.GetOrCreate(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	return tp.DB(), nil
}

// openTenantDB is the default pool opener: build the tenant DSN from config
// and credentials, open, and ping
func (s *Service) openTenantDB(ctx context.Context, tenantKey string) (*sql.DB, error) {
	creds, err := s.secrets.GetSecret(ctx, s.cfg.Database.CredentialsRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database credentials: %w", err)
	}

	dsn, err := buildDSN(s.dialect.Name(), s.cfg.Database, creds, tenantKey)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(s.dialect.Driver(), dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// buildDSN renders the per-tenant connection string. The tenant key is
// validated long before it reaches here, but the registry revalidates at
// its boundary anyway.
func buildDSN(dialect string, cfg DatabaseConfig, creds map[string]string, tenantKey string) (string, error) {
	if err := base.ValidateTenantKey(tenantKey); err != nil {
		return "", err
	}

	username := creds["username"]
	password := creds["password"]
	if username == "" {
		return "", fmt.Errorf("database credentials are missing a username")
	}

	switch dialect {
	case "postgres":
		sslMode := cfg.SSLMode
		if v := creds["sslmode"]; v != "" {
			sslMode = v
		}
		if sslMode == "" {
			sslMode = "require"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, username, password, tenantKey, sslMode), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			username, password, cfg.Host, cfg.Port, tenantKey), nil
	default:
		return "", fmt.Errorf("unknown dialect %q", dialect)
	}
}

// Acquire returns the tenant's pool handle, creating the pool on first
// access. No schema validation runs here; this is the zero-overhead path.
func (s *Service) Acquire(ctx context.Context, tenantKey string) (*pool.TenantPool, error) {
	return s.registry.GetOrCreate(ctx, tenantKey)
}

// WithTenantConnection runs work against the tenant's database. On a
// schema-shaped failure it forces a validation pass, repairs any drift, and
// retries the work exactly once. The single-retry cap bounds the worst case
// at two attempts and prevents validate-fail-validate loops. If the retry
// fails too, the original query error surfaces, never the repair
// machinery's internal errors.
func (s *Service) WithTenantConnection(ctx context.Context, tenantKey string, work WorkFunc) error {
	p, err := s.registry.GetOrCreate(ctx, tenantKey)
	if err != nil {
		return err
	}

	workErr := work(ctx, p.DB())
	if workErr == nil {
		return nil
	}

	// Callers that classify their own failures (query mappers, ORMs) can
	// wrap them in a QueryError; otherwise the dialect inspects the driver
	// error codes.
	if !base.IsSchemaMissing(workErr) && s.dialect.ClassifyError(workErr) != base.KindSchemaMissing {
		return workErr
	}

	requestID := uuid.NewString()
	s.log.Warn(tenantKey, requestID, "Schema-shaped query failure, validating", map[string]interface{}{
		"error": workErr.Error(),
	})

	verdict, err := s.validator.IsValid(ctx, tenantKey, schema.CheckOptions{Force: true})
	if err != nil {
		// Validation machinery failed; the caller still gets the
		// original query error, not ours
		s.log.ErrorWithErr(tenantKey, requestID, "Validation after query failure errored", err, nil)
		return workErr
	}

	if !verdict.Valid {
		report, err := s.syncer.Repair(ctx, tenantKey, verdict)
		if err != nil {
			s.log.ErrorWithErr(tenantKey, requestID, "Schema repair errored", err, nil)
			return workErr
		}
		s.validator.InvalidateCache(tenantKey)
		s.log.Info(tenantKey, requestID, "Schema repaired, retrying request", map[string]interface{}{
			"applied": report.Applied,
			"failed":  report.Failed,
		})
	}

	if retryErr := work(ctx, p.DB()); retryErr != nil {
		return workErr
	}
	return nil
}

// ForceValidate bypasses the verdict cache and runs a full introspection
func (s *Service) ForceValidate(ctx context.Context, tenantKey string) (*schema.Verdict, error) {
	return s.validator.IsValid(ctx, tenantKey, schema.CheckOptions{Force: true})
}

// RepairSchema validates and repairs a tenant in one administrative call,
// returning the full repair report including per-statement failures
func (s *Service) RepairSchema(ctx context.Context, tenantKey string) (*schema.RepairReport, error) {
	verdict, err := s.validator.IsValid(ctx, tenantKey, schema.CheckOptions{Force: true})
	if err != nil {
		return nil, err
	}

	report, err := s.syncer.Repair(ctx, tenantKey, verdict)
	if err != nil {
		return nil, err
	}

	if report.Applied > 0 || report.Failed > 0 {
		s.validator.InvalidateCache(tenantKey)
	}
	return report, nil
}

// ClearCache clears one tenant's cached verdict, or all verdicts when
// tenantKey is empty
func (s *Service) ClearCache(tenantKey string) {
	if tenantKey == "" {
		s.validator.InvalidateAll()
		return
	}
	s.validator.InvalidateCache(tenantKey)
}

// PoolStats returns the registry snapshot for observability
func (s *Service) PoolStats() pool.Snapshot {
	return s.registry.Stats()
}

// InvalidatePool force-closes a tenant's pool so the next access rebuilds
// it, used after tenant deletion
func (s *Service) InvalidatePool(ctx context.Context, tenantKey string) error {
	return s.registry.Invalidate(ctx, tenantKey)
}

// HealthCheck reports a tenant's schema health, serving from the verdict
// cache when possible
func (s *Service) HealthCheck(ctx context.Context, tenantKey string) (*HealthStatus, error) {
	verdict, err := s.validator.IsValid(ctx, tenantKey, schema.CheckOptions{})
	if err != nil {
		return nil, err
	}

	return &HealthStatus{
		TenantKey:     tenantKey,
		Valid:         verdict.Valid,
		SchemaVersion: verdict.SchemaVersion,
		TableCount:    s.validator.Catalog().TableCount(),
	}, nil
}

// Shutdown stops the idle sweeper and closes every tenant pool
func (s *Service) Shutdown(ctx context.Context) {
	s.sweepCancel()
	s.registry.CloseAll(ctx)
	s.log.Info("", "", "Tenant database layer shut down", nil)
}
