package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthResponse is the body of every probe and control endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler reports whether the dump scheduler loop is still running.
func LivenessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, checker.Liveness(), "alive", nil, logger)
	}
}

// ReadinessHandler reports whether the recorder has at least one
// initialized type, along with the scheduler's last dump outcome.
func ReadinessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, checker.Readiness(r.Context()), "ready", checker.GetStatus(), logger)
	}
}

func writeProbe(w http.ResponseWriter, ok bool, state string, checks map[string]string, logger *zap.Logger) {
	code := http.StatusOK
	if !ok {
		state = "not " + state
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: state, Timestamp: now(), Checks: checks}, logger)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
