package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/skylensaero/identity/internal/identity/service"
	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/identitysdk"
	"github.com/skylensaero/identity/pkg/slogx"
)

type InvitationsHandler struct {
	InviteService *service.InviteService
}

// HandleIssue creates an invitation and sends the invite notification. A
// delivery failure after the record is committed still returns 200, with
// delivery_failed set so the operator knows to resend.
func (h *InvitationsHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.IssueInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	actorEmail := httpx.EmailFromContext(ctx)
	if actorEmail == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, identitysdk.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Bearer token must carry an email claim",
		})
		return
	}

	inv, token, err := h.InviteService.Issue(ctx, actorEmail, service.IssueRequest{
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		Company:   req.Company,
		Phone:     req.Phone,
		HasAccess: req.HasAccess,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})

	deliveryFailed := false
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrNotificationFailed):
			// Invitation committed; only the notification was lost.
			deliveryFailed = true
		case errors.As(err, &verr):
			httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ValidationErrorResponse{
				Code:    "validation_error",
				Message: "validation failed for some fields",
				Details: verr.Fields,
			})
			return
		case errors.Is(err, service.ErrInvalidRequest):
			httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid invitation parameters",
			})
			return
		case errors.Is(err, service.ErrPermissionDenied):
			httpx.WriteJSON(w, http.StatusForbidden, identitysdk.ErrorResponse{
				Error:            "permission_denied",
				ErrorDescription: "Only administrators can issue admin invitations",
			})
			return
		case errors.Is(err, service.ErrUntrustedAdminDomain):
			httpx.WriteJSON(w, http.StatusForbidden, identitysdk.ErrorResponse{
				Error:            "untrusted_domain",
				ErrorDescription: "Admin invitations are restricted to the trusted operator domain",
			})
			return
		case errors.Is(err, service.ErrActiveUserExists):
			httpx.WriteJSON(w, http.StatusConflict, identitysdk.ErrorResponse{
				Error:            "user_exists",
				ErrorDescription: "An active account already exists for this email",
			})
			return
		case errors.Is(err, service.ErrDuplicateInvitation):
			httpx.WriteJSON(w, http.StatusConflict, identitysdk.ErrorResponse{
				Error:            "duplicate_invitation",
				ErrorDescription: "A pending invitation already exists for this email",
			})
			return
		default:
			log.Error("failed to issue invitation", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to create invitation",
			})
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, identitysdk.IssueInvitationResponse{
		Invitation:     toInvitationInfo(inv),
		InviteToken:    token,
		DeliveryFailed: deliveryFailed,
	})
}

// HandleList returns every invitation, newest first.
func (h *InvitationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	invs, err := h.InviteService.List(ctx)
	if err != nil {
		log.Error("failed to list invitations", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to list invitations",
		})
		return
	}

	resp := identitysdk.ListInvitationsResponse{
		Invitations: make([]identitysdk.InvitationInfo, len(invs)),
	}
	for i, inv := range invs {
		resp.Invitations[i] = toInvitationInfo(inv)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *InvitationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inv, err := h.InviteService.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrInvitationNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Invitation not found",
			})
			return
		}
		slogx.FromContext(ctx).Error("failed to load invitation", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to load invitation",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toInvitationInfo(inv))
}

// HandleResend rotates the invitation token, extends the expiry and
// re-delivers. Accepted invitations cannot be resent.
func (h *InvitationsHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	inv, token, err := h.InviteService.Resend(ctx, r.PathValue("id"))

	deliveryFailed := false
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotificationFailed):
			deliveryFailed = true
		case errors.Is(err, service.ErrInvitationNotFound):
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Invitation not found or already accepted",
			})
			return
		default:
			log.Error("failed to resend invitation", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to resend invitation",
			})
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, identitysdk.IssueInvitationResponse{
		Invitation:     toInvitationInfo(inv),
		InviteToken:    token,
		DeliveryFailed: deliveryFailed,
	})
}

func (h *InvitationsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.InviteService.Cancel(ctx, r.PathValue("id")); err != nil {
		if errors.Is(err, service.ErrInvitationNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Invitation not found",
			})
			return
		}
		slogx.FromContext(ctx).Error("failed to cancel invitation", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to cancel invitation",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
