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
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig locates the database server hosting the tenant databases
type DatabaseConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	SSLMode string `yaml:"ssl_mode,omitempty"` // postgres only
	// CredentialsRef names the secret holding the platform database
	// user: an ARN for the aws backend, an env prefix for the env
	// backend
	CredentialsRef string `yaml:"credentials_ref"`
	// SecretsBackend selects the credentials source: aws, env, or local
	SecretsBackend string `yaml:"secrets_backend,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
}

// PoolConfig tunes the pool registry. Millisecond fields follow the
// platform's config-file convention.
type PoolConfig struct {
	MaxPools            int     `yaml:"max_pools,omitempty"`
	MaxConnsPerPool     int     `yaml:"max_conns_per_pool,omitempty"`
	MaxIdleConnsPerPool int     `yaml:"max_idle_conns_per_pool,omitempty"`
	ConnMaxLifetimeMs   int     `yaml:"conn_max_lifetime_ms,omitempty"`
	IdleTimeoutMs       int     `yaml:"idle_timeout_ms,omitempty"`
	SweepIntervalMs     int     `yaml:"sweep_interval_ms,omitempty"`
	EvictFraction       float64 `yaml:"evict_fraction,omitempty"`
	DrainTimeoutMs      int     `yaml:"drain_timeout_ms,omitempty"`
	AcquireTimeoutMs    int     `yaml:"acquire_timeout_ms,omitempty"`
}

// SchemaConfig tunes validation and repair
type SchemaConfig struct {
	CatalogPath            string `yaml:"catalog_path"`
	VerdictTTLMs           int    `yaml:"verdict_ttl_ms,omitempty"`
	IntrospectionTimeoutMs int    `yaml:"introspection_timeout_ms,omitempty"`
	DDLTimeoutMs           int    `yaml:"ddl_timeout_ms,omitempty"`
	// DisableValidation is the operational kill switch: no check ever
	// touches a tenant database while it is set
	DisableValidation bool `yaml:"disable_validation,omitempty"`
}

// RedisConfig enables the optional shared verdict cache
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// AdminConfig configures the administrative HTTP server
type AdminConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the full configuration for the tenant database layer
type Config struct {
	Dialect  string         `yaml:"dialect"`
	Database DatabaseConfig `yaml:"database"`
	Pool     PoolConfig     `yaml:"pool,omitempty"`
	Schema   SchemaConfig   `yaml:"schema"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Admin    AdminConfig    `yaml:"admin,omitempty"`
}

// LoadConfig reads, env-overrides, and validates a YAML config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployments override the file without editing it
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TENANTDB_DIALECT"); v != "" {
		c.Dialect = v
	}
	if v := os.Getenv("TENANTDB_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("TENANTDB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("TENANTDB_CREDENTIALS_REF"); v != "" {
		c.Database.CredentialsRef = v
	}
	if v := os.Getenv("TENANTDB_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TENANTDB_ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
	if v := os.Getenv("TENANTDB_DISABLE_VALIDATION"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			c.Schema.DisableValidation = disabled
		}
	}
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	switch c.Dialect {
	case "postgres", "postgresql", "mysql":
	case "":
		return fmt.Errorf("config: dialect is required")
	default:
		return fmt.Errorf("config: unknown dialect %q", c.Dialect)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range", c.Database.Port)
	}
	if c.Database.CredentialsRef == "" {
		return fmt.Errorf("config: database.credentials_ref is required")
	}
	if c.Schema.CatalogPath == "" {
		return fmt.Errorf("config: schema.catalog_path is required")
	}
	if c.Pool.EvictFraction < 0 || c.Pool.EvictFraction > 1 {
		return fmt.Errorf("config: pool.evict_fraction %v is out of range", c.Pool.EvictFraction)
	}

	switch c.Database.SecretsBackend {
	case "", "aws", "env", "local":
	default:
		return fmt.Errorf("config: unknown secrets backend %q", c.Database.SecretsBackend)
	}

	return nil
}

// durationOrDefault converts a millisecond config field, zero meaning unset
func durationOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// VerdictTTL returns the verdict cache TTL. The right value varies with
// deployment size; the default is deliberately just a default.
func (c *Config) VerdictTTL() time.Duration {
	return durationOrDefault(c.Schema.VerdictTTLMs, time.Hour)
}

// IntrospectionTimeout returns the bound on one validation pass
func (c *Config) IntrospectionTimeout() time.Duration {
	return durationOrDefault(c.Schema.IntrospectionTimeoutMs, 30*time.Second)
}

// DDLTimeout returns the per-statement repair bound
func (c *Config) DDLTimeout() time.Duration {
	return durationOrDefault(c.Schema.DDLTimeoutMs, 2*time.Minute)
}

// SweepInterval returns how often the idle sweeper runs
func (c *Config) SweepInterval() time.Duration {
	return durationOrDefault(c.Pool.SweepIntervalMs, 5*time.Minute)
}

// AcquireTimeout returns the bound on waiting for a free connection
func (c *Config) AcquireTimeout() time.Duration {
	return durationOrDefault(c.Pool.AcquireTimeoutMs, 10*time.Second)
}
