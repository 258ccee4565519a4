// Package store provides session persistence backends.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return a CodeNotFound domain error when the requested entity does not exist
//   - Return nil for successful operations
//   - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"
	"time"

	"labgate/internal/session"
	id "labgate/pkg/domain"
)

// Store persists sessions. ReplaceActive must behave as a single transactional
// unit: deactivate any active session for the same (admin, IP) pair and insert
// the new record, so two concurrent logins cannot both create one.
type Store interface {
	ReplaceActive(ctx context.Context, s *session.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*session.Session, error)
	FindUsableByAdminIP(ctx context.Context, adminID id.AdminID, ip string, now time.Time) (*session.Session, error)
	ListByAdmin(ctx context.Context, adminID id.AdminID) ([]*session.Session, error)
	UpdateUsage(ctx context.Context, s *session.Session) error
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}
