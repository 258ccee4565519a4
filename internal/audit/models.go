package audit

import "time"

// Event is emitted from domain logic to capture key gateway actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	AdminID   string    `json:"admin_id"`
	IPAddress string    `json:"ip_address"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Duration  int64     `json:"duration_ms,omitempty"`
}

const (
	ActionLoginFresh     = "login_fresh"
	ActionLoginReused    = "login_session_reused"
	ActionLoginBlocked   = "login_provider_blocked"
	ActionLoginFailed    = "login_failed"
	ActionSessionExpired = "session_expired"
	ActionSessionSwept   = "session_swept"
	ActionProviderCall   = "provider_call"
	ActionCartReconciled = "cart_reconciled"
	ActionCartFallback   = "cart_reconcile_fallback"
	ActionRateLimited    = "rate_limited"
)
