package sqlite

import (
	"context"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
)

type roleEventsRepo struct {
	db dbtx
}

func (r *roleEventsRepo) AppendRoleEvent(ctx context.Context, e domain.RoleEvent) error {
	if e.ChangedAt.IsZero() {
		e.ChangedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_events (id, user_id, role, changed_by, changed_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Role.String(), e.ChangedBy, e.ChangedAt, e.Reason)
	return mapConflict(err)
}

func (r *roleEventsRepo) ListRoleEventsByUser(ctx context.Context, userID string) ([]domain.RoleEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, role, changed_by, changed_at, reason
		 FROM role_events WHERE user_id = ? ORDER BY changed_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RoleEvent
	for rows.Next() {
		var (
			e    domain.RoleEvent
			role string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &role, &e.ChangedBy, &e.ChangedAt, &e.Reason); err != nil {
			return nil, err
		}
		parsed, perr := domain.ParseRole(role)
		if perr != nil {
			parsed = domain.RoleClient
		}
		e.Role = parsed
		events = append(events, e)
	}
	return events, rows.Err()
}
