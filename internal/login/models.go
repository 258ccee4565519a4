package login

import (
	"time"

	id "labgate/pkg/domain"
)

// Admin is the locally cached profile mirrored from the provider's login
// response. The password hash enables the fast path that avoids a provider
// call purely to check credentials.
type Admin struct {
	ID           id.AdminID
	Username     string
	PasswordHash string // bcrypt; empty until the first successful provider login

	// Fields mirrored from the provider.
	Name              string
	Email             string
	Mobile            string
	ProviderRespID    string
	VerificationKey   string
	TrackingPrivilege bool
	OTPAccess         bool
	IsPrepaid         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginType tags how a login request was satisfied.
type LoginType string

const (
	// LoginTypeRefreshed means a cached session at the caller's IP was reused.
	LoginTypeRefreshed LoginType = "REFRESHED_SESSION"
	// LoginTypeFresh means credentials were submitted to the provider.
	LoginTypeFresh LoginType = "FRESH_THYROCARE"
)

// Input carries one login request through the orchestrator.
type Input struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// Result is the merged profile plus session metadata returned to the caller.
type Result struct {
	LoginType   LoginType
	Admin       *Admin
	SessionID   id.SessionID
	APIKey      string
	AccessToken string
	ExpiresAt   time.Time
	Token       string // gateway-issued JWT for subsequent authenticated calls
}
