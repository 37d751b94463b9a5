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

package base

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTenantKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid simple", key: "agency_acme", wantErr: false},
		{name: "valid with digits", key: "agency_42", wantErr: false},
		{name: "valid single letter", key: "a", wantErr: false},
		{name: "empty", key: "", wantErr: true},
		{name: "uppercase rejected", key: "Agency", wantErr: true},
		{name: "leading digit rejected", key: "1agency", wantErr: true},
		{name: "leading underscore rejected", key: "_agency", wantErr: true},
		{name: "hyphen rejected", key: "agency-acme", wantErr: true},
		{name: "space rejected", key: "agency acme", wantErr: true},
		{name: "sql injection attempt", key: "agency'; DROP DATABASE x;--", wantErr: true},
		{name: "path traversal attempt", key: "../etc/passwd", wantErr: true},
		{name: "semicolon rejected", key: "agency;b", wantErr: true},
		{name: "quote rejected", key: `agency"b`, wantErr: true},
		{name: "unicode rejected", key: "agencyé", wantErr: true},
		{name: "too long", key: strings.Repeat("a", MaxTenantKeyLength+1), wantErr: true},
		{name: "exactly max length", key: strings.Repeat("a", MaxTenantKeyLength), wantErr: false},
		{name: "reserved postgres", key: "postgres", wantErr: true},
		{name: "reserved information_schema", key: "information_schema", wantErr: true},
		{name: "reserved mysql", key: "mysql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTenantKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil {
				var keyErr *TenantKeyInvalidError
				if !errors.As(err, &keyErr) {
					t.Errorf("expected TenantKeyInvalidError, got %T", err)
				}
			}
		})
	}
}
