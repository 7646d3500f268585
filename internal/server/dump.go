package server

import (
	"net/http"

	"go.uber.org/zap"
)

// DumpResponse is returned by the dump endpoint.
type DumpResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DumpHandler returns a handler that queues a dump of every type. Only POST
// is accepted. A request made while a dump is already pending is coalesced
// into it.
func DumpHandler(trigger DumpTrigger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := "queued"
		if !trigger.Trigger("http") {
			status = "pending"
		}

		logger.Info("manual dump requested",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("status", status),
		)

		writeJSON(w, http.StatusAccepted, DumpResponse{
			Status:    status,
			Timestamp: now(),
		}, logger)
	}
}
