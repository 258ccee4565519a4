// Package session holds the provider-session domain model and its stores.
// One active session exists per (admin, IP) pair; each expires independently
// and an API key is only ever handed to requests from the IP it was issued
// for.
package session

import (
	"time"

	id "labgate/pkg/domain"
)

// providerZone is the provider's local offset (UTC+5:30). The provider voids
// API keys at its local midnight regardless of the stated TTL, so expiry is
// evaluated against this zone's calendar date.
var providerZone = time.FixedZone("IST", 5*3600+1800)

// Session is a persisted provider credential record bound to one admin at
// one source IP. Sessions are deactivated, never hard-deleted.
type Session struct {
	ID        id.SessionID
	AdminID   id.AdminID
	IPAddress string
	UserAgent string

	// Device display metadata for session management UI, e.g. "Chrome on macOS".
	DeviceDisplayName string

	// Provider-issued credentials.
	APIKey      string
	AccessToken string
	RespID      string

	CreatedAt       time.Time
	APIKeyExpiresAt time.Time
	ExpiresAt       time.Time
	LastUsageAt     time.Time
	UsageCount      int
	Active          bool
}

// IsExpired reports whether the session's API key is no longer usable at the
// given instant: either the numeric expiry has passed, or the provider-local
// calendar date has rolled over since the session was created.
func (s *Session) IsExpired(now time.Time) bool {
	if !now.Before(s.APIKeyExpiresAt) {
		return true
	}
	cy, cm, cd := s.CreatedAt.In(providerZone).Date()
	ny, nm, nd := now.In(providerZone).Date()
	return cy != ny || cm != nm || cd != nd
}

// IsUsable reports whether the session may serve an authenticated call right now.
func (s *Session) IsUsable(now time.Time) bool {
	return s.Active && !s.IsExpired(now)
}

// RecordUsage refreshes the usage counters on session reuse.
func (s *Session) RecordUsage(at time.Time) {
	if at.After(s.LastUsageAt) {
		s.LastUsageAt = at
	}
	s.UsageCount++
}

// Deactivate marks the session unusable. Returns true if the transition
// occurred, false if it was already inactive.
func (s *Session) Deactivate() bool {
	if !s.Active {
		return false
	}
	s.Active = false
	return true
}
