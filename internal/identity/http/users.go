package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/service"
	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/identitysdk"
	"github.com/skylensaero/identity/pkg/slogx"
)

type UsersHandler struct {
	AccessService *service.AccessService
}

func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.AccessService.ListUsers(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list users", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to list users",
		})
		return
	}

	resp := identitysdk.ListUsersResponse{
		Users: make([]identitysdk.UserInfo, len(users)),
	}
	for i, usr := range users {
		resp.Users[i] = toUserInfo(usr)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	usr, err := h.AccessService.GetUser(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "User not found",
			})
			return
		}
		slogx.FromContext(ctx).Error("failed to load user", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to load user",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserInfo(usr))
}

// HandleRoleHistory returns the append-only role audit trail for a user,
// oldest first.
func (h *UsersHandler) HandleRoleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	events, err := h.AccessService.RoleHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "User not found",
			})
			return
		}
		slogx.FromContext(ctx).Error("failed to load role history", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to load role history",
		})
		return
	}

	resp := identitysdk.RoleHistoryResponse{
		UserID: userID,
		Events: make([]identitysdk.RoleEventInfo, len(events)),
	}
	for i, ev := range events {
		resp.Events[i] = toRoleEventInfo(ev)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleSetRole changes a user's role. The acting admin comes from the
// bearer token's email claim.
func (h *UsersHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Unknown role",
		})
		return
	}

	usr, err := h.AccessService.SetRole(ctx, httpx.EmailFromContext(ctx), r.PathValue("id"), role, req.Reason)
	if err != nil {
		h.writeMutationError(w, log, err, "failed to change role")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserInfo(usr))
}

// HandleSetAccess flips a user's access flag.
func (h *UsersHandler) HandleSetAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.SetAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	usr, err := h.AccessService.SetAccess(ctx, httpx.EmailFromContext(ctx), r.PathValue("id"), req.HasAccess, req.Reason)
	if err != nil {
		h.writeMutationError(w, log, err, "failed to change access")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserInfo(usr))
}

// writeMutationError maps the shared role/access mutation failures.
func (h *UsersHandler) writeMutationError(w http.ResponseWriter, log *slog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteJSON(w, http.StatusBadRequest, identitysdk.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid parameters",
		})
	case errors.Is(err, service.ErrPermissionDenied):
		httpx.WriteJSON(w, http.StatusForbidden, identitysdk.ErrorResponse{
			Error:            "permission_denied",
			ErrorDescription: "Acting user is not an administrator",
		})
	case errors.Is(err, service.ErrUntrustedAdminDomain):
		httpx.WriteJSON(w, http.StatusForbidden, identitysdk.ErrorResponse{
			Error:            "untrusted_domain",
			ErrorDescription: "Admin role is restricted to the trusted operator domain",
		})
	case errors.Is(err, service.ErrSelfModification):
		httpx.WriteJSON(w, http.StatusForbidden, identitysdk.ErrorResponse{
			Error:            "self_modification",
			ErrorDescription: "Users cannot change their own access flag",
		})
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, identitysdk.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "User not found",
		})
	default:
		log.Error(msg, "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, identitysdk.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Operation failed",
		})
	}
}
