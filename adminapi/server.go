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
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"ledgerhub/platform/shared/logger"
	"ledgerhub/platform/tenantdb"
	"ledgerhub/platform/tenantdb/base"
	"ledgerhub/platform/tenantdb/pool"
	"ledgerhub/platform/tenantdb/schema"
)

// TenantService is the facade surface the admin API drives. Satisfied by
// *tenantdb.Service; narrowed to an interface so handler tests can stub it.
type TenantService interface {
	ForceValidate(ctx context.Context, tenantKey string) (*schema.Verdict, error)
	RepairSchema(ctx context.Context, tenantKey string) (*schema.RepairReport, error)
	ClearCache(tenantKey string)
	PoolStats() pool.Snapshot
	InvalidatePool(ctx context.Context, tenantKey string) error
	HealthCheck(ctx context.Context, tenantKey string) (*tenantdb.HealthStatus, error)
}

// Server is the administrative HTTP server
type Server struct {
	svc       TenantService
	log       *logger.Logger
	jwtSecret []byte
}

// NewServer creates an admin server. The JWT secret comes from
// ADMIN_JWT_SECRET unless given explicitly.
func NewServer(svc TenantService, log *logger.Logger, jwtSecret []byte) *Server {
	if log == nil {
		log = logger.New("adminapi")
	}
	if len(jwtSecret) == 0 {
		jwtSecret = []byte(os.Getenv("ADMIN_JWT_SECRET"))
	}
	return &Server{svc: svc, log: log, jwtSecret: jwtSecret}
}

// Handler builds the router with CORS and auth applied
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Unauthenticated probes
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/pools", s.poolStatsHandler).Methods("GET")
	api.HandleFunc("/tenants/{tenant}/health", s.tenantHealthHandler).Methods("GET")
	api.HandleFunc("/tenants/{tenant}/validate", s.validateHandler).Methods("POST")
	api.HandleFunc("/tenants/{tenant}/repair", s.repairHandler).Methods("POST")
	api.HandleFunc("/tenants/{tenant}/pool", s.invalidatePoolHandler).Methods("DELETE")
	api.HandleFunc("/cache", s.clearAllCacheHandler).Methods("DELETE")
	api.HandleFunc("/cache/{tenant}", s.clearCacheHandler).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

// ListenAndServe runs the admin server until the context is canceled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // repairs can take a while
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("", "", "Admin API listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// authMiddleware requires a bearer JWT with an admin role claim
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			writeError(w, http.StatusServiceUnavailable, "admin API secret not configured")
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["role"] != "admin" {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps facade errors to HTTP statuses
func statusForError(err error) int {
	var keyErr *base.TenantKeyInvalidError
	if errors.As(err, &keyErr) {
		return http.StatusBadRequest
	}
	var createErr *base.PoolCreationError
	if errors.As(err, &createErr) {
		return http.StatusBadGateway
	}
	var introErr *base.SchemaIntrospectionError
	if errors.As(err, &introErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
