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
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestQueryErrorUnwrap(t *testing.T) {
	cause := errors.New("pq: relation \"invoices\" does not exist")
	qe := NewQueryError("agency_acme", KindSchemaMissing, cause)

	if !errors.Is(qe, cause) {
		t.Error("expected errors.Is to find cause through QueryError")
	}

	wrapped := fmt.Errorf("facade: %w", qe)
	if !IsSchemaMissing(wrapped) {
		t.Error("expected IsSchemaMissing to see through wrapping")
	}
}

func TestIsSchemaMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "schema missing kind",
			err:  NewQueryError("a", KindSchemaMissing, errors.New("undefined table")),
			want: true,
		},
		{
			name: "transient kind",
			err:  NewQueryError("a", KindTransient, errors.New("deadlock")),
			want: false,
		},
		{
			name: "fatal kind",
			err:  NewQueryError("a", KindFatal, errors.New("syntax error")),
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSchemaMissing(tt.err); got != tt.want {
				t.Errorf("IsSchemaMissing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "pool creation",
			err:      NewPoolCreationError("agency_a", errors.New("connection refused")),
			contains: "agency_a",
		},
		{
			name:     "pool exhausted",
			err:      NewPoolExhaustedError("agency_b", 5*time.Second, errors.New("timeout")),
			contains: "5s",
		},
		{
			name:     "introspection with table",
			err:      NewSchemaIntrospectionError("agency_c", "invoices", errors.New("timeout")),
			contains: "invoices",
		},
		{
			name:     "repair partial failure counts",
			err:      NewSchemaRepairPartialFailure("agency_d", 7, 3),
			contains: "3 of 10",
		},
		{
			name:     "invalid key quotes input",
			err:      NewTenantKeyInvalidError("bad key", "key must start with a lowercase letter"),
			contains: `"bad key"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := tt.err.Error(); !strings.Contains(msg, tt.contains) {
				t.Errorf("error message %q does not contain %q", msg, tt.contains)
			}
		})
	}
}
