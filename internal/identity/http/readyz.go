package http

import (
	"net/http"
	"time"

	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/identitysdk"
)

// ReadyzHandler is the readiness probe. It reports degraded with a 503 when
// the backing database cannot be reached.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &identitysdk.HealthChecks{
			Database: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := identitysdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
