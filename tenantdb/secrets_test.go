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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecretsManager(t *testing.T) {
	t.Setenv("LEDGERDB_USERNAME", "platform_rw")
	t.Setenv("LEDGERDB_PASSWORD", "s3cret")
	t.Setenv("LEDGERDB_SSLMODE", "verify-full")

	mgr := NewEnvSecretsManager(nil)
	creds, err := mgr.GetSecret(context.Background(), "LEDGERDB")
	require.NoError(t, err)

	assert.Equal(t, "platform_rw", creds["username"])
	assert.Equal(t, "s3cret", creds["password"])
	assert.Equal(t, "verify-full", creds["sslmode"])
}

func TestEnvSecretsManagerMissing(t *testing.T) {
	mgr := NewEnvSecretsManager(nil)
	_, err := mgr.GetSecret(context.Background(), "NO_SUCH_PREFIX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials found")
}

func TestLocalSecretsManager(t *testing.T) {
	mgr := NewLocalSecretsManager(nil)
	mgr.SetSecret("dev", map[string]string{"username": "dev", "password": "dev"})

	creds, err := mgr.GetSecret(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "dev", creds["username"])

	_, err = mgr.GetSecret(context.Background(), "absent")
	require.Error(t, err)
}

func TestNewSecretsManagerBackendSelection(t *testing.T) {
	log := testLogger()

	mgr, err := NewSecretsManager(context.Background(), DatabaseConfig{SecretsBackend: "env"}, log)
	require.NoError(t, err)
	assert.IsType(t, &EnvSecretsManager{}, mgr)

	// Empty backend defaults to env
	mgr, err = NewSecretsManager(context.Background(), DatabaseConfig{}, log)
	require.NoError(t, err)
	assert.IsType(t, &EnvSecretsManager{}, mgr)

	mgr, err = NewSecretsManager(context.Background(), DatabaseConfig{SecretsBackend: "local"}, log)
	require.NoError(t, err)
	assert.IsType(t, &LocalSecretsManager{}, mgr)

	_, err = NewSecretsManager(context.Background(), DatabaseConfig{SecretsBackend: "vault"}, log)
	require.Error(t, err)
}

func TestMaskRef(t *testing.T) {
	assert.Equal(t, "***", maskRef("short"))
	assert.Equal(t, "...tenantdb",
		maskRef("arn:aws:secretsmanager:eu-central-1:123456789012:secret:tenantdb"))
}
