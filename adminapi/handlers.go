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
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) poolStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PoolStats())
}

func (s *Server) tenantHealthHandler(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	status, err := s.svc.HealthCheck(r.Context(), tenant)
	if err != nil {
		s.log.ErrorWithErr(tenant, "", "Health check failed", err, nil)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	verdict, err := s.svc.ForceValidate(r.Context(), tenant)
	if err != nil {
		s.log.ErrorWithErr(tenant, "", "Forced validation failed", err, nil)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) repairHandler(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	report, err := s.svc.RepairSchema(r.Context(), tenant)
	if err != nil {
		s.log.ErrorWithErr(tenant, "", "Schema repair failed", err, nil)
		writeError(w, statusForError(err), err.Error())
		return
	}

	// Partial failure still returns the report; the per-statement
	// errors are the payload administrators came for
	status := http.StatusOK
	if report.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (s *Server) invalidatePoolHandler(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	if err := s.svc.InvalidatePool(r.Context(), tenant); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "tenant": tenant})
}

func (s *Server) clearAllCacheHandler(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearCache("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]
	s.svc.ClearCache(tenant)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "tenant": tenant})
}
