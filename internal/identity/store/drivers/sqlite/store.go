package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/store"

	_ "modernc.org/sqlite"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, letting
// the per-table repos run unchanged inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer; serializing through one connection avoids
	// SQLITE_BUSY under concurrent transactions and keeps :memory: databases
	// coherent across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Rollback is safe to call after a successful commit.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users             { return &usersRepo{db: s.db} }
func (s *Store) Invitations() store.Invitations { return &invitationsRepo{db: s.db} }
func (s *Store) RoleEvents() store.RoleEvents   { return &roleEventsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConflict translates the driver's unique-constraint violation into the
// store-level sentinel so services can match on it.
func mapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var (
		u              domain.User
		role           string
		company, phone sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.HasAccess, &company, &phone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}

	// Legacy "user" rows read back as client.
	parsed, perr := domain.ParseRole(role)
	if perr != nil {
		parsed = domain.RoleClient
	}

	u.Role = parsed
	u.Company = mapNullString(company)
	u.Phone = mapNullString(phone)
	return u, nil
}

func scanInvitation(row interface{ Scan(dest ...any) error }) (domain.Invitation, error) {
	var (
		inv            domain.Invitation
		role, status   string
		company, phone sql.NullString
		acceptedAt     sql.NullTime
	)
	err := row.Scan(
		&inv.ID, &inv.Email, &inv.Name, &company, &phone, &role, &inv.HasAccess,
		&inv.TokenHash, &inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt,
		&acceptedAt, &status, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invitation{}, err
	}

	parsed, perr := domain.ParseRole(role)
	if perr != nil {
		parsed = domain.RoleClient
	}

	inv.Role = parsed
	inv.Company = mapNullString(company)
	inv.Phone = mapNullString(phone)
	inv.AcceptedAt = mapNullTimePtr(acceptedAt)
	inv.Status = domain.InvitationStatus(status)
	return inv, nil
}
