package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// mockHealthChecker implements HealthChecker for testing
type mockHealthChecker struct {
	liveness  bool
	readiness bool
	healthy   bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool {
	return m.liveness
}

func (m *mockHealthChecker) Readiness(ctx context.Context) bool {
	return m.readiness
}

func (m *mockHealthChecker) IsHealthy() bool {
	return m.healthy
}

func (m *mockHealthChecker) GetStatus() map[string]string {
	return m.status
}

// mockTrigger accepts the first request and reports later ones as pending.
type mockTrigger struct {
	mu      sync.Mutex
	reasons []string
	accept  bool
}

func (m *mockTrigger) Trigger(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
	return m.accept
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		liveness   bool
		wantCode   int
		wantStatus string
	}{
		{"alive", true, http.StatusOK, "alive"},
		{"not alive", false, http.StatusServiceUnavailable, "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockHealthChecker{liveness: tt.liveness}

			handler := LivenessHandler(checker, zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if response.Timestamp == "" {
				t.Error("timestamp should be set")
			}
		})
	}
}

func TestReadinessHandler_Ready(t *testing.T) {
	checker := &mockHealthChecker{
		readiness: true,
		status: map[string]string{
			"recorder":  "initialized",
			"last_dump": "success",
		},
	}

	handler := ReadinessHandler(checker, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ready" {
		t.Errorf("status = %s, want ready", response.Status)
	}
	if len(response.Checks) != 2 {
		t.Errorf("len(checks) = %d, want 2", len(response.Checks))
	}
	if response.Checks["recorder"] != "initialized" {
		t.Errorf("checks[recorder] = %q", response.Checks["recorder"])
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	checker := &mockHealthChecker{
		readiness: false,
		status:    map[string]string{"recorder": "uninitialized"},
	}

	handler := ReadinessHandler(checker, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "not ready" {
		t.Errorf("status = %s, want not ready", response.Status)
	}
}

func TestDumpHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		accept     bool
		wantCode   int
		wantStatus string
		wantCalls  int
	}{
		{"post queued", http.MethodPost, true, http.StatusAccepted, "queued", 1},
		{"post pending", http.MethodPost, false, http.StatusAccepted, "pending", 1},
		{"get rejected", http.MethodGet, true, http.StatusMethodNotAllowed, "", 0},
		{"put rejected", http.MethodPut, true, http.StatusMethodNotAllowed, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &mockTrigger{accept: tt.accept}

			handler := DumpHandler(trigger, zap.NewNop())
			req := httptest.NewRequest(tt.method, "/dump", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if len(trigger.reasons) != tt.wantCalls {
				t.Errorf("Trigger calls = %d, want %d", len(trigger.reasons), tt.wantCalls)
			}

			if tt.wantStatus == "" {
				if allow := w.Header().Get("Allow"); allow != http.MethodPost {
					t.Errorf("Allow = %q, want POST", allow)
				}
				return
			}

			var response DumpResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if trigger.reasons[0] != "http" {
				t.Errorf("reason = %q, want http", trigger.reasons[0])
			}
		})
	}
}
