// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "labgate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing AdminID where SessionID is expected.
type (
	AdminID   uuid.UUID
	SessionID uuid.UUID
)

// NewAdminID generates a fresh admin identifier.
func NewAdminID() AdminID {
	return AdminID(uuid.New())
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseAdminID(s string) (AdminID, error) {
	id, err := parseUUID(s, "admin ID")
	return AdminID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func (id AdminID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id AdminID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+what)
	}
	return id, nil
}
