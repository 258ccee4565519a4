package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"labgate/internal/login"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

// PostgresAdminStore persists admin profiles in PostgreSQL.
type PostgresAdminStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed admin store.
func NewPostgres(db *sql.DB) *PostgresAdminStore {
	return &PostgresAdminStore{db: db}
}

// Schema creates the admins table. Applied at startup when Postgres is
// configured; idempotent.
const Schema = `
create table if not exists admins (
	id uuid primary key,
	username text not null unique,
	password_hash text not null default '',
	name text not null default '',
	email text not null default '',
	mobile text not null default '',
	provider_resp_id text not null default '',
	verification_key text not null default '',
	tracking_privilege boolean not null default false,
	otp_access boolean not null default false,
	is_prepaid boolean not null default false,
	created_at timestamptz not null,
	updated_at timestamptz not null
);
`

// EnsureSchema applies the admins schema.
func (s *PostgresAdminStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "apply admin schema")
	}
	return nil
}

func (s *PostgresAdminStore) FindByUsername(ctx context.Context, username string) (*login.Admin, error) {
	var (
		admin     login.Admin
		adminUUID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx,
		`select id, username, password_hash, name, email, mobile, provider_resp_id,
			verification_key, tracking_privilege, otp_access, is_prepaid, created_at, updated_at
		 from admins where lower(username) = lower($1)`,
		username,
	).Scan(
		&adminUUID, &admin.Username, &admin.PasswordHash, &admin.Name, &admin.Email,
		&admin.Mobile, &admin.ProviderRespID, &admin.VerificationKey,
		&admin.TrackingPrivilege, &admin.OTPAccess, &admin.IsPrepaid,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "admin not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find admin")
	}
	admin.ID = id.AdminID(adminUUID)
	return &admin, nil
}

func (s *PostgresAdminStore) Upsert(ctx context.Context, admin *login.Admin) error {
	_, err := s.db.ExecContext(ctx,
		`insert into admins (id, username, password_hash, name, email, mobile,
			provider_resp_id, verification_key, tracking_privilege, otp_access,
			is_prepaid, created_at, updated_at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 on conflict (username) do update set
			password_hash = excluded.password_hash,
			name = excluded.name,
			email = excluded.email,
			mobile = excluded.mobile,
			provider_resp_id = excluded.provider_resp_id,
			verification_key = excluded.verification_key,
			tracking_privilege = excluded.tracking_privilege,
			otp_access = excluded.otp_access,
			is_prepaid = excluded.is_prepaid,
			updated_at = excluded.updated_at`,
		uuid.UUID(admin.ID), admin.Username, admin.PasswordHash, admin.Name,
		admin.Email, admin.Mobile, admin.ProviderRespID, admin.VerificationKey,
		admin.TrackingPrivilege, admin.OTPAccess, admin.IsPrepaid,
		admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert admin")
	}
	return nil
}

var _ login.AdminStore = (*PostgresAdminStore)(nil)
