package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"labgate/internal/session"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the sessions table. Applied at startup when Postgres is
// configured; idempotent.
const Schema = `
create table if not exists provider_sessions (
	id uuid primary key,
	admin_id uuid not null,
	ip_address text not null,
	user_agent text not null default '',
	device_display_name text not null default '',
	api_key text not null,
	access_token text not null default '',
	resp_id text not null default '',
	created_at timestamptz not null,
	api_key_expires_at timestamptz not null,
	expires_at timestamptz not null,
	last_usage_at timestamptz not null,
	usage_count int not null default 0,
	active boolean not null default true
);
create index if not exists provider_sessions_admin_ip_idx
	on provider_sessions (admin_id, ip_address) where active;
`

const sessionColumns = `id, admin_id, ip_address, user_agent, device_display_name,
	api_key, access_token, resp_id, created_at, api_key_expires_at, expires_at,
	last_usage_at, usage_count, active`

// EnsureSchema applies the sessions schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "apply session schema")
	}
	return nil
}

// ReplaceActive deactivates any active session for the same (admin, IP) pair
// and inserts the new record inside one transaction.
func (s *PostgresStore) ReplaceActive(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin session tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`update provider_sessions set active = false
		 where admin_id = $1 and ip_address = $2 and active`,
		uuid.UUID(sess.AdminID), sess.IPAddress,
	); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate prior session")
	}

	if _, err := tx.ExecContext(ctx,
		`insert into provider_sessions (`+sessionColumns+`)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(sess.ID), uuid.UUID(sess.AdminID), sess.IPAddress, sess.UserAgent,
		sess.DeviceDisplayName, sess.APIKey, sess.AccessToken, sess.RespID,
		sess.CreatedAt, sess.APIKeyExpiresAt, sess.ExpiresAt, sess.LastUsageAt,
		sess.UsageCount, sess.Active,
	); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "insert session")
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit session tx")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from provider_sessions where id = $1`,
		uuid.UUID(sessionID),
	)
	return scanSession(row)
}

// FindUsableByAdminIP applies the activity flag and numeric expiry in SQL;
// the provider-local calendar-date rollover is evaluated in Go on the result.
func (s *PostgresStore) FindUsableByAdminIP(ctx context.Context, adminID id.AdminID, ip string, now time.Time) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from provider_sessions
		 where admin_id = $1 and ip_address = $2 and active and api_key_expires_at > $3
		 order by created_at desc limit 1`,
		uuid.UUID(adminID), ip, now,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if !sess.IsUsable(now) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no usable session for admin at this IP")
	}
	return sess, nil
}

func (s *PostgresStore) ListByAdmin(ctx context.Context, adminID id.AdminID) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+sessionColumns+` from provider_sessions
		 where admin_id = $1 order by created_at desc`,
		uuid.UUID(adminID),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateUsage(ctx context.Context, sess *session.Session) error {
	res, err := s.db.ExecContext(ctx,
		`update provider_sessions set last_usage_at = $2, usage_count = $3 where id = $1`,
		uuid.UUID(sess.ID), sess.LastUsageAt, sess.UsageCount,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update session usage")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return nil
}

func (s *PostgresStore) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	// Numeric expiry is expressed in SQL; the midnight-rollover rule compares
	// created_at's provider-local date against now's.
	res, err := s.db.ExecContext(ctx,
		`update provider_sessions set active = false
		 where active and (
			api_key_expires_at <= $1
			or date(created_at at time zone 'Asia/Kolkata') <> date($1::timestamptz at time zone 'Asia/Kolkata')
		 )`,
		now,
	)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "deactivate expired sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess                 session.Session
		sessionID, adminUUID uuid.UUID
	)
	err := row.Scan(
		&sessionID, &adminUUID, &sess.IPAddress, &sess.UserAgent,
		&sess.DeviceDisplayName, &sess.APIKey, &sess.AccessToken, &sess.RespID,
		&sess.CreatedAt, &sess.APIKeyExpiresAt, &sess.ExpiresAt, &sess.LastUsageAt,
		&sess.UsageCount, &sess.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan session")
	}
	sess.ID = id.SessionID(sessionID)
	sess.AdminID = id.AdminID(adminUUID)
	return &sess, nil
}

var _ Store = (*PostgresStore)(nil)
