package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skylensaero/identity/internal/identity/service"
	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/identitysdk"
	"github.com/skylensaero/identity/pkg/slogx"
)

type MaintenanceHandler struct {
	MergeService *service.MergeService
}

// HandleResolveDuplicates collapses duplicate accounts for one email into a
// single survivor. Safe to re-run; a second call for a clean email returns
// the surviving user unchanged.
func (h *MaintenanceHandler) HandleResolveDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.ResolveDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}
	if req.Email == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "email is required",
		})
		return
	}

	usr, strategy, err := h.MergeService.ResolveDuplicates(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "No users exist for this email",
			})
		case errors.Is(err, service.ErrMergeConflict):
			httpx.WriteJSON(w, http.StatusConflict, identitysdk.ErrorResponse{
				Error:            "merge_conflict",
				ErrorDescription: "No deterministic survivor; manual review required",
			})
		default:
			log.Error("failed to resolve duplicates", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to resolve duplicates",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, identitysdk.ResolveDuplicatesResponse{
		User:     toUserInfo(usr),
		Strategy: string(strategy),
	})
}
