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

type RedeemHandler struct {
	RedeemService *service.RedeemService
}

// ServeHTTP consumes an invitation token and provisions the account. The
// redeeming email is taken from the bearer token's email claim, never from
// the body, so a stolen token alone cannot be redeemed.
func (h *RedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.RedeemInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}
	if req.InviteToken == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "invite_token is required",
		})
		return
	}

	email := httpx.EmailFromContext(ctx)
	if email == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, identitysdk.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Bearer token must carry an email claim",
		})
		return
	}

	usr, err := h.RedeemService.Redeem(ctx, req.InviteToken, email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid redemption parameters",
			})
		case errors.Is(err, service.ErrInvalidToken):
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "invalid_token",
				ErrorDescription: "Invitation token is not recognized",
			})
		case errors.Is(err, service.ErrTokenExpired):
			httpx.WriteJSON(w, http.StatusGone, identitysdk.ErrorResponse{
				Error:            "token_expired",
				ErrorDescription: "Invitation token has expired; ask for a resend",
			})
		case errors.Is(err, service.ErrStatusConflict):
			httpx.WriteJSON(w, http.StatusConflict, identitysdk.ErrorResponse{
				Error:            "status_conflict",
				ErrorDescription: "Invitation has already been redeemed or revoked",
			})
		case errors.Is(err, service.ErrIdentityMismatch):
			httpx.WriteJSON(w, http.StatusUnprocessableEntity, identitysdk.ErrorResponse{
				Error:            "identity_mismatch",
				ErrorDescription: "Authenticated email does not match the invitation",
			})
		case errors.Is(err, service.ErrMergeConflict):
			httpx.WriteJSON(w, http.StatusConflict, identitysdk.ErrorResponse{
				Error:            "merge_conflict",
				ErrorDescription: "Duplicate accounts for this email need manual review",
			})
		default:
			log.Error("failed to redeem invitation", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to redeem invitation",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserInfo(usr))
}
