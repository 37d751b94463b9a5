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
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"ledgerhub/platform/shared/logger"
)

// SecretsManager resolves the database credentials referenced by
// DatabaseConfig.CredentialsRef. Implementations must be safe for
// concurrent use.
type SecretsManager interface {
	// GetSecret returns the credential map for a reference; the layer
	// reads the "username" and "password" keys
	GetSecret(ctx context.Context, ref string) (map[string]string, error)
}

// NewSecretsManager builds the backend named in the config: "aws" for AWS
// Secrets Manager, "env" for environment variables, "local" for the
// in-memory store used in development and tests. Empty defaults to "env".
func NewSecretsManager(ctx context.Context, cfg DatabaseConfig, log *logger.Logger) (SecretsManager, error) {
	switch cfg.SecretsBackend {
	case "aws":
		return NewAWSSecretsManager(ctx, AWSSecretsManagerOptions{Region: cfg.AWSRegion, Logger: log})
	case "env", "":
		return NewEnvSecretsManager(log), nil
	case "local":
		return NewLocalSecretsManager(log), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.SecretsBackend)
	}
}

// AWSSecretsManager reads credentials from AWS Secrets Manager with a
// short-lived in-process cache
type AWSSecretsManager struct {
	client *secretsmanager.Client
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	log    *logger.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *logger.Logger
	// StaticCredentials overrides the default AWS credential chain,
	// useful against localstack in development
	StaticCredentials *AWSStaticCredentials
}

// AWSStaticCredentials is an explicit AWS key pair for development setups
type AWSStaticCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// NewAWSSecretsManager creates an AWS-backed secrets manager
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	log := opts.Logger
	if log == nil {
		log = logger.New("tenantdb")
	}

	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.StaticCredentials != nil {
		cfgOpts = append(cfgOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				opts.StaticCredentials.AccessKeyID,
				opts.StaticCredentials.SecretAccessKey,
				"",
			)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(awsCfg),
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		log:    log,
	}, nil
}

// GetSecret retrieves a secret, serving recent values from the cache. The
// secret value is expected to be a JSON object with string values.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, ref string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[ref]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskRef(ref), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskRef(ref))
	}

	var creds map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &creds); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", maskRef(ref), err)
	}

	s.mu.Lock()
	s.cache[ref] = &secretCacheEntry{
		value:     creds,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	s.log.Debug("", "", "Fetched and cached database credentials", map[string]interface{}{
		"ref": maskRef(ref),
	})
	return creds, nil
}

// InvalidateSecret drops a cached secret, forcing a refetch on next use
func (s *AWSSecretsManager) InvalidateSecret(ref string) {
	s.mu.Lock()
	delete(s.cache, ref)
	s.mu.Unlock()
}

// maskRef masks a secret reference for logging (shows only the tail)
func maskRef(ref string) string {
	if len(ref) <= 12 {
		return "***"
	}
	return "..." + ref[len(ref)-8:]
}

// EnvSecretsManager reads credentials from environment variables. The ref
// is used as a prefix: ref "TENANTDB" reads TENANTDB_USERNAME and
// TENANTDB_PASSWORD.
type EnvSecretsManager struct {
	log *logger.Logger
}

// NewEnvSecretsManager creates an environment-backed secrets manager
func NewEnvSecretsManager(log *logger.Logger) *EnvSecretsManager {
	if log == nil {
		log = logger.New("tenantdb")
	}
	return &EnvSecretsManager{log: log}
}

var envCredentialFields = map[string]string{
	"USERNAME": "username",
	"PASSWORD": "password",
	"SSLMODE":  "sslmode",
}

// GetSecret reads <ref>_USERNAME, <ref>_PASSWORD, and friends
func (s *EnvSecretsManager) GetSecret(ctx context.Context, ref string) (map[string]string, error) {
	creds := make(map[string]string)
	for field, key := range envCredentialFields {
		if value := os.Getenv(ref + "_" + field); value != "" {
			creds[key] = value
		}
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("no credentials found in environment for prefix %s", ref)
	}

	return creds, nil
}

// LocalSecretsManager is an in-memory secrets store for development and
// tests
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewLocalSecretsManager creates an empty local secrets manager
func NewLocalSecretsManager(log *logger.Logger) *LocalSecretsManager {
	if log == nil {
		log = logger.New("tenantdb")
	}
	return &LocalSecretsManager{
		secrets: make(map[string]map[string]string),
		log:     log,
	}
}

// GetSecret retrieves a secret set earlier with SetSecret
func (s *LocalSecretsManager) GetSecret(ctx context.Context, ref string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[ref]; exists {
		return secret, nil
	}
	return nil, fmt.Errorf("secret %s not found in local secrets manager", ref)
}

// SetSecret stores a secret
func (s *LocalSecretsManager) SetSecret(ref string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[ref] = value
}
