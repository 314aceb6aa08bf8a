package http

import (
	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/pkg/identitysdk"
)

func toInvitationInfo(inv domain.Invitation) identitysdk.InvitationInfo {
	return identitysdk.InvitationInfo{
		ID:         inv.ID,
		Email:      inv.Email,
		Name:       inv.Name,
		Role:       string(inv.Role),
		Company:    inv.Company,
		Phone:      inv.Phone,
		Status:     string(inv.Status),
		InvitedBy:  inv.InvitedBy,
		InvitedAt:  inv.InvitedAt,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
	}
}

func toUserInfo(usr domain.User) identitysdk.UserInfo {
	return identitysdk.UserInfo{
		ID:        usr.ID,
		Email:     usr.Email,
		Name:      usr.Name,
		Role:      string(usr.Role),
		HasAccess: usr.HasAccess,
		Company:   usr.Company,
		Phone:     usr.Phone,
		CreatedAt: usr.CreatedAt,
		UpdatedAt: usr.UpdatedAt,
	}
}

func toRoleEventInfo(ev domain.RoleEvent) identitysdk.RoleEventInfo {
	return identitysdk.RoleEventInfo{
		ID:        ev.ID,
		Role:      string(ev.Role),
		ChangedBy: ev.ChangedBy,
		ChangedAt: ev.ChangedAt,
		Reason:    ev.Reason,
	}
}
