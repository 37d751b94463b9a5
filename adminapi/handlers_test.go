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

package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerhub/platform/tenantdb"
	"ledgerhub/platform/tenantdb/base"
	"ledgerhub/platform/tenantdb/pool"
	"ledgerhub/platform/tenantdb/schema"
)

var testSecret = []byte("test-admin-secret")

// stubService records calls and serves canned responses
type stubService struct {
	verdict       *schema.Verdict
	verdictErr    error
	report        *schema.RepairReport
	reportErr     error
	health        *tenantdb.HealthStatus
	healthErr     error
	invalidateErr error

	clearedKeys []string
	invalidated []string
}

func (s *stubService) ForceValidate(_ context.Context, tenantKey string) (*schema.Verdict, error) {
	return s.verdict, s.verdictErr
}

func (s *stubService) RepairSchema(_ context.Context, tenantKey string) (*schema.RepairReport, error) {
	return s.report, s.reportErr
}

func (s *stubService) ClearCache(tenantKey string) {
	s.clearedKeys = append(s.clearedKeys, tenantKey)
}

func (s *stubService) PoolStats() pool.Snapshot {
	return pool.Snapshot{Pools: 2, MaxPools: 50, Hits: 10, Misses: 2}
}

func (s *stubService) InvalidatePool(_ context.Context, tenantKey string) error {
	s.invalidated = append(s.invalidated, tenantKey)
	return s.invalidateErr
}

func (s *stubService) HealthCheck(_ context.Context, tenantKey string) (*tenantdb.HealthStatus, error) {
	return s.health, s.healthErr
}

func adminToken(t *testing.T, role string, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops@ledgerhub.io",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	srv := NewServer(&stubService{}, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv := NewServer(&stubService{}, nil, testSecret)
	handler := srv.Handler()

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", adminToken(t, "admin", []byte("other-secret")), http.StatusUnauthorized},
		{"non-admin role", adminToken(t, "viewer", testSecret), http.StatusForbidden},
		{"admin role", adminToken(t, "admin", testSecret), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, "GET", "/api/v1/pools", tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuthMiddlewareRejectsUnsignedToken(t *testing.T) {
	srv := NewServer(&stubService{}, nil, testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin"})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec := doRequest(t, srv.Handler(), "GET", "/api/v1/pools", unsigned)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWithoutSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	srv := NewServer(&stubService{}, nil, nil)

	rec := doRequest(t, srv.Handler(), "GET", "/api/v1/pools", adminToken(t, "admin", testSecret))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPoolStatsHandler(t *testing.T) {
	srv := NewServer(&stubService{}, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "GET", "/api/v1/pools", adminToken(t, "admin", testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap pool.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Pools)
	assert.Equal(t, 50, snap.MaxPools)
}

func TestTenantHealthHandler(t *testing.T) {
	stub := &stubService{
		health: &tenantdb.HealthStatus{
			TenantKey:     "acme",
			Valid:         true,
			SchemaVersion: "2.4.0",
			TableCount:    12,
		},
	}
	srv := NewServer(stub, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "GET", "/api/v1/tenants/acme/health", adminToken(t, "admin", testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var status tenantdb.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Valid)
	assert.Equal(t, "2.4.0", status.SchemaVersion)
}

func TestValidateHandler(t *testing.T) {
	stub := &stubService{
		verdict: &schema.Verdict{
			TenantKey:     "acme",
			Valid:         false,
			Discrepancies: []schema.Discrepancy{{Table: "invoices", Column: "tax_code"}},
		},
	}
	srv := NewServer(stub, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "POST", "/api/v1/tenants/acme/validate", adminToken(t, "admin", testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict schema.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.False(t, verdict.Valid)
	require.Len(t, verdict.Discrepancies, 1)
}

func TestValidateHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid tenant key", base.NewTenantKeyInvalidError("Bad!", "must match pattern"), http.StatusBadRequest},
		{"unreachable tenant db", base.NewPoolCreationError("acme", assert.AnError), http.StatusBadGateway},
		{"introspection failure", base.NewSchemaIntrospectionError("acme", "users", assert.AnError), http.StatusBadGateway},
		{"anything else", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&stubService{verdictErr: tt.err}, nil, testSecret)
			rec := doRequest(t, srv.Handler(), "POST", "/api/v1/tenants/acme/validate", adminToken(t, "admin", testSecret))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRepairHandler(t *testing.T) {
	stub := &stubService{
		report: &schema.RepairReport{TenantKey: "acme", Applied: 3},
	}
	srv := NewServer(stub, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "POST", "/api/v1/tenants/acme/repair", adminToken(t, "admin", testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var report schema.RepairReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Applied)
}

func TestRepairHandlerPartialFailureIsMultiStatus(t *testing.T) {
	stub := &stubService{
		report: &schema.RepairReport{
			TenantKey: "acme",
			Applied:   2,
			Failed:    1,
			Statements: []schema.StatementResult{
				{Table: "invoices", Column: "tax_code", Error: "permission denied"},
			},
		},
	}
	srv := NewServer(stub, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "POST", "/api/v1/tenants/acme/repair", adminToken(t, "admin", testSecret))
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var report schema.RepairReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Failed)
}

func TestInvalidatePoolHandler(t *testing.T) {
	stub := &stubService{}
	srv := NewServer(stub, nil, testSecret)

	rec := doRequest(t, srv.Handler(), "DELETE", "/api/v1/tenants/acme/pool", adminToken(t, "admin", testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"acme"}, stub.invalidated)
}

func TestClearCacheHandlers(t *testing.T) {
	stub := &stubService{}
	srv := NewServer(stub, nil, testSecret)
	handler := srv.Handler()
	token := adminToken(t, "admin", testSecret)

	rec := doRequest(t, handler, "DELETE", "/api/v1/cache/acme", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, "DELETE", "/api/v1/cache", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"acme", ""}, stub.clearedKeys)
}
