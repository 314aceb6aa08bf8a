package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/notify"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/cryptox"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/skylensaero/identity/pkg/slogx"

	"github.com/go-playground/validator/v10"
)

// DefaultInviteTTL is how long a freshly issued invitation stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrActiveUserExists     = errors.New("an active user already exists for this email")
	ErrDuplicateInvitation  = errors.New("a pending invitation already exists for this email")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrNotificationFailed   = errors.New("invitation stored but notification delivery failed")
	ErrUntrustedAdminDomain = errors.New("admin role requires a trusted operator domain email")
)

// validate is the shared request validator for all services.
var validate = validator.New()

// ValidationError carries per-field failures so the HTTP layer can report
// which inputs were rejected. It unwraps to ErrInvalidRequest.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "invalid request" }

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

func newValidationError(err error) error {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return &ValidationError{Fields: fields}
}

// InviteService issues, resends and cancels invitations.
type InviteService struct {
	Store    store.Store
	Notifier notify.Notifier

	// TrustedAdminDomain is the email domain allowed to hold the admin role.
	TrustedAdminDomain string

	// InviteTTL is the default token lifetime; zero means DefaultInviteTTL.
	InviteTTL time.Duration

	// NotifyTimeout bounds how long a mutation waits on delivery.
	NotifyTimeout time.Duration
}

// IssueRequest carries the fields an administrator submits when inviting a
// prospect.
type IssueRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required,max=100"`
	Role      string `json:"role" validate:"required"`
	Company   string `json:"company" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=32"`
	HasAccess bool   `json:"has_access"`

	// TTL overrides the default invitation lifetime when positive.
	TTL time.Duration `json:"-"`
}

// Issue creates an invitation and triggers delivery. The returned token is
// the only copy of the secret; the store keeps a fingerprint.
//
// A delivery failure after the record is committed comes back as
// ErrNotificationFailed alongside the created invitation: the caller should
// treat it as degraded success and offer a resend, not a retry of the whole
// operation.
func (s *InviteService) Issue(
	ctx context.Context,
	actorEmail string,
	req IssueRequest,
) (domain.Invitation, string, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Normalize, then validate. Every email comparison downstream runs
	// on the normalized form, and whitespace padding from a copy-pasted
	// address is not a client error.
	req.Email = domain.NormalizeEmail(req.Email)
	req.Role = strings.TrimSpace(req.Role)
	if err := validate.Struct(req); err != nil {
		log.Warn("invitation request failed validation", slog.Any("error", err))
		return domain.Invitation{}, "", newValidationError(err)
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return domain.Invitation{}, "", ErrInvalidRequest
	}

	email := req.Email

	// 2. Admin invitations need an admin caller and a trusted-domain target.
	if role == domain.RoleAdmin {
		actor, err := s.Store.Users().GetUserByEmail(ctx, actorEmail)
		if err != nil || actor.Role != domain.RoleAdmin || !actor.HasAccess {
			log.Warn("non-admin attempted to issue admin invitation",
				slog.String("actor", actorEmail),
			)
			return domain.Invitation{}, "", ErrPermissionDenied
		}
		if domain.EmailDomain(email) != s.TrustedAdminDomain {
			return domain.Invitation{}, "", ErrUntrustedAdminDomain
		}
	}

	// 3. Reject when an active account already holds the email.
	if existing, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		if existing.HasAccess {
			return domain.Invitation{}, "", ErrActiveUserExists
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check for existing user", slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	// 4. At most one pending, unexpired invitation per email.
	if _, err := s.Store.Invitations().GetPendingInvitationByEmail(ctx, email, now); err == nil {
		return domain.Invitation{}, "", ErrDuplicateInvitation
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to check for pending invitation", slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	// 5. Generate the opaque token; only its fingerprint is stored.
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		log.Error("failed to generate invitation token", slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.inviteTTL()
	}

	inv := domain.Invitation{
		ID:        idx.New().String(),
		Email:     email,
		Name:      req.Name,
		Company:   req.Company,
		Phone:     req.Phone,
		Role:      role,
		HasAccess: req.HasAccess,
		TokenHash: cryptox.FingerprintToken(token),
		InvitedBy: domain.NormalizeEmail(actorEmail),
		InvitedAt: now,
		ExpiresAt: now.Add(ttl),
		Status:    domain.InvitationStatusPending,
	}

	// 6. Persist. An overdue pending row the sweep has not flipped yet
	// still occupies the partial unique index, so expire stale rows in the
	// same transaction before inserting. The index then backstops the
	// existence check under a concurrent issue for the same email.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Invitations().ExpireOverdueInvitations(ctx, now); err != nil {
			return err
		}
		return tx.Invitations().CreateInvitation(ctx, inv)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Invitation{}, "", ErrDuplicateInvitation
		}
		log.Error("failed to create invitation", slog.String("invitation_id", inv.ID), slog.Any("error", err))
		return domain.Invitation{}, "", err
	}

	log.Info("invitation issued",
		slog.String("invitation_id", inv.ID),
		slog.String("role", role.String()),
		slog.String("invited_by", inv.InvitedBy),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	// 7. Best-effort delivery; the committed record stands either way.
	if err := s.deliver(ctx, inv, token, notify.TemplateInvitation); err != nil {
		log.Warn("invitation notification delivery failed",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return inv, token, ErrNotificationFailed
	}

	return inv, token, nil
}

// Resend regenerates the token and expiry for an unaccepted invitation and
// re-triggers delivery. Accepted or missing invitations fail with
// ErrInvitationNotFound.
func (s *InviteService) Resend(ctx context.Context, invitationID string) (domain.Invitation, string, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	inv, err := s.Store.Invitations().GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, "", ErrInvitationNotFound
		}
		return domain.Invitation{}, "", err
	}
	if inv.Status == domain.InvitationStatusAccepted {
		return domain.Invitation{}, "", ErrInvitationNotFound
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.Invitation{}, "", err
	}

	inv.TokenHash = cryptox.FingerprintToken(token)
	inv.ExpiresAt = now.Add(s.inviteTTL())
	inv.Status = domain.InvitationStatusPending
	inv.AcceptedAt = nil

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Invitations().RenewInvitation(ctx, inv.ID, inv.TokenHash, inv.ExpiresAt)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, "", ErrInvitationNotFound
		}
		return domain.Invitation{}, "", err
	}

	log.Info("invitation resent", slog.String("invitation_id", inv.ID))

	if err := s.deliver(ctx, inv, token, notify.TemplateInvitationResend); err != nil {
		log.Warn("resend notification delivery failed",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
		return inv, token, ErrNotificationFailed
	}

	return inv, token, nil
}

// Cancel deletes an unaccepted invitation.
func (s *InviteService) Cancel(ctx context.Context, invitationID string) error {
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	if inv.Status == domain.InvitationStatusAccepted {
		return ErrInvitationNotFound
	}

	if err := s.Store.Invitations().DeleteInvitation(ctx, inv.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return err
	}
	return nil
}

// Get returns a single invitation.
func (s *InviteService) Get(ctx context.Context, invitationID string) (domain.Invitation, error) {
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrInvitationNotFound
		}
		return domain.Invitation{}, err
	}
	return inv, nil
}

// List returns all invitations, newest first.
func (s *InviteService) List(ctx context.Context) ([]domain.Invitation, error) {
	return s.Store.Invitations().ListInvitations(ctx)
}

func (s *InviteService) inviteTTL() time.Duration {
	if s.InviteTTL > 0 {
		return s.InviteTTL
	}
	return DefaultInviteTTL
}

// deliver sends the invitation token with a bounded timeout so a slow broker
// cannot stall the request path.
func (s *InviteService) deliver(ctx context.Context, inv domain.Invitation, token, template string) error {
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.Notifier.Send(ctx, inv.Email, template, map[string]string{
		"token":      token,
		"name":       inv.Name,
		"invited_by": inv.InvitedBy,
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	})
}
