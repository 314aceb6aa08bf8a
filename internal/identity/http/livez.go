package http

import (
	"net/http"
	"time"

	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/identitysdk"
)

// LivezHandler is the liveness probe. It always answers 200 while the
// process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := identitysdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
