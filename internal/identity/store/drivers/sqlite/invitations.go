package sqlite

import (
	"context"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
)

const invitationColumns = `id, email, name, company, phone, role, has_access, token_hash,
	invited_by, invited_at, expires_at, accepted_at, status, updated_at`

type invitationsRepo struct {
	db dbtx
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	now := time.Now().UTC()
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = now
	}
	if inv.Status == "" {
		inv.Status = domain.InvitationStatusPending
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, email, name, company, phone, role, has_access, token_hash,
		    invited_by, invited_at, expires_at, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, domain.NormalizeEmail(inv.Email), inv.Name, mapStringNull(inv.Company),
		mapStringNull(inv.Phone), inv.Role.String(), inv.HasAccess, inv.TokenHash,
		inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt, string(inv.Status), inv.UpdatedAt)
	return mapConflict(err)
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)

	inv, err := scanInvitation(row)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token_hash = ?`, hash)

	inv, err := scanInvitation(row)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) GetPendingInvitationByEmail(
	ctx context.Context,
	email string,
	now time.Time,
) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE email = ? AND status = 'pending' AND expires_at > ?`,
		domain.NormalizeEmail(email), now)

	inv, err := scanInvitation(row)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) GetLatestInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE email = ? ORDER BY invited_at DESC, id DESC LIMIT 1`,
		domain.NormalizeEmail(email))

	inv, err := scanInvitation(row)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) ListInvitations(ctx context.Context) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations ORDER BY invited_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// AcceptInvitation is a conditional update: the status check and transition
// happen in one statement, so only one concurrent redeemer can win.
func (r *invitationsRepo) AcceptInvitation(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'accepted', accepted_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		at, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) ExpireInvitation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'expired', updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) RenewInvitation(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET token_hash = ?, expires_at = ?, status = 'pending', accepted_at = NULL, updated_at = ?
		 WHERE id = ? AND status != 'accepted'`,
		tokenHash, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) DeleteInvitation(ctx context.Context, id string) error {
	// Accepted rows are the audit trail of a redemption and must survive a
	// cancel that races the redeem. The status guard makes the delete a
	// no-op (ErrNotFound) once a row has been accepted.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE id = ? AND status != 'accepted'`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *invitationsRepo) ExpireOverdueInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'expired', updated_at = ?
		 WHERE status = 'pending' AND expires_at < ?`,
		now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
