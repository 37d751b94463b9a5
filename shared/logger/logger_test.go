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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
)

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		component      string
		instanceID     string
		expectedComp   string
		expectedInstID string
	}{
		{
			name:           "with instance ID set",
			component:      "tenantdb",
			instanceID:     "instance-123",
			expectedComp:   "tenantdb",
			expectedInstID: "instance-123",
		},
		{
			name:           "without instance ID",
			component:      "adminapi",
			instanceID:     "",
			expectedComp:   "adminapi",
			expectedInstID: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.instanceID != "" {
				t.Setenv("INSTANCE_ID", tt.instanceID)
			} else {
				if err := os.Unsetenv("INSTANCE_ID"); err != nil {
					t.Fatalf("Failed to unset INSTANCE_ID: %v", err)
				}
			}

			l := New(tt.component)

			if l.Component != tt.expectedComp {
				t.Errorf("Expected component %s, got %s", tt.expectedComp, l.Component)
			}
			if l.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, l.InstanceID)
			}
			if l.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
		})
	}
}

// captureOutput redirects the stdlib log output for the duration of fn
func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	}()
	fn()
	return buf.String()
}

// TestLogLevels tests all log level methods produce valid JSON entries
func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		logFunc   func(*Logger, string, string, string, map[string]interface{})
		level     LogLevel
		message   string
		tenantID  string
		requestID string
		fields    map[string]interface{}
	}{
		{
			name:      "Info log",
			logFunc:   (*Logger).Info,
			level:     INFO,
			message:   "Pool created",
			tenantID:  "agency_acme",
			requestID: "req-456",
			fields:    map[string]interface{}{"max_conns": 5},
		},
		{
			name:      "Error log",
			logFunc:   (*Logger).Error,
			level:     ERROR,
			message:   "Schema repair failed",
			tenantID:  "agency_blue",
			requestID: "req-012",
			fields:    map[string]interface{}{"statement": "ALTER TABLE"},
		},
		{
			name:      "Warn log",
			logFunc:   (*Logger).Warn,
			level:     WARN,
			message:   "Verdict cache miss",
			tenantID:  "agency_cobalt",
			requestID: "",
			fields:    nil,
		},
		{
			name:      "Debug log",
			logFunc:   (*Logger).Debug,
			level:     DEBUG,
			message:   "Idle sweep pass",
			tenantID:  "",
			requestID: "",
			fields:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("tenantdb")

			out := captureOutput(func() {
				tt.logFunc(l, tt.tenantID, tt.requestID, tt.message, tt.fields)
			})

			var entry LogEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
				t.Fatalf("Log output is not valid JSON: %v\noutput: %s", err, out)
			}

			if entry.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, entry.Message)
			}
			if entry.TenantID != tt.tenantID {
				t.Errorf("Expected tenant_id %q, got %q", tt.tenantID, entry.TenantID)
			}
			if entry.Component != "tenantdb" {
				t.Errorf("Expected component tenantdb, got %s", entry.Component)
			}
		})
	}
}

// TestErrorWithErr tests that the error detail is attached as a field
func TestErrorWithErr(t *testing.T) {
	l := New("tenantdb")

	out := captureOutput(func() {
		l.ErrorWithErr("agency_acme", "req-1", "Pool creation failed", os.ErrDeadlineExceeded, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}

	if entry.Fields["error"] != os.ErrDeadlineExceeded.Error() {
		t.Errorf("Expected error field %q, got %v", os.ErrDeadlineExceeded.Error(), entry.Fields["error"])
	}
}

// TestInfoWithDuration tests the duration convenience wrapper
func TestInfoWithDuration(t *testing.T) {
	l := New("tenantdb")

	out := captureOutput(func() {
		l.InfoWithDuration("agency_acme", "req-2", "Acquire completed", 12.5, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}

	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("Expected duration_ms 12.5, got %v", entry.Fields["duration_ms"])
	}
}
