// Package login implements the session-pooling login orchestrator: reuse an
// unexpired session bound to the caller's IP when possible, otherwise force a
// fresh provider login through the breaker and queue.
package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"labgate/internal/audit"
	"labgate/internal/platform/metrics"
	"labgate/internal/provider"
	"labgate/internal/ratelimit"
	"labgate/internal/session"
	"labgate/internal/session/device"
	sessionstore "labgate/internal/session/store"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

const (
	defaultSessionTTL = 24 * time.Hour
	// defaultAPIKeyTTL is the provider's stated key lifetime. The effective
	// lifetime is shorter whenever the provider-local date rolls over first.
	defaultAPIKeyTTL = 24 * time.Hour
)

// ProviderLogin is the slice of the executor the orchestrator needs.
type ProviderLogin interface {
	Login(ctx context.Context, req provider.LoginRequest) (*provider.LoginResponse, error)
}

// AdminStore persists locally cached admin profiles.
// Error Contract: FindByUsername returns a CodeNotFound domain error when the
// admin does not exist.
type AdminStore interface {
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	Upsert(ctx context.Context, admin *Admin) error
}

// AuditPublisher records login attempts for observability.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config tunes the orchestrator.
type Config struct {
	PortalType string
	UserType   string
	SessionTTL time.Duration
	APIKeyTTL  time.Duration
}

// Service is the login orchestrator.
type Service struct {
	admins   AdminStore
	sessions sessionstore.Store
	prov     ProviderLogin
	limiter  *ratelimit.Limiter
	tokens   *TokenIssuer

	cfg     Config
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithMetrics enables login metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRateLimiter installs the login-path throttle.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the orchestrator with required dependencies and options applied.
func New(
	admins AdminStore,
	sessions sessionstore.Store,
	prov ProviderLogin,
	tokens *TokenIssuer,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	if admins == nil || sessions == nil || prov == nil || tokens == nil {
		return nil, errors.New("admins, sessions, provider, and tokens are required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.APIKeyTTL <= 0 {
		cfg.APIKeyTTL = defaultAPIKeyTTL
	}
	s := &Service{
		admins:   admins,
		sessions: sessions,
		prov:     prov,
		tokens:   tokens,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login runs the full decision tree for one login request.
func (s *Service) Login(ctx context.Context, in Input) (*Result, error) {
	if in.Username == "" || in.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	if in.IPAddress == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "source IP could not be determined")
	}

	if s.limiter != nil {
		if res := s.limiter.Check(ctx, in.IPAddress); !res.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimitRejected.WithLabelValues(res.Scope).Inc()
			}
			s.emit(ctx, audit.Event{
				IPAddress: in.IPAddress,
				Action:    audit.ActionRateLimited,
				Outcome:   "rejected",
				Detail:    res.Scope,
			})
			return nil, dErrors.New(dErrors.CodeRateLimited, "too many login attempts; retry later")
		}
	}

	now := s.now()

	// Fast path: a locally verified password plus an unexpired session at
	// this IP means no provider contact at all.
	admin, err := s.admins.FindByUsername(ctx, in.Username)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, err
	}
	if admin != nil && admin.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(in.Password)) == nil {
			if result, ok := s.tryReuse(ctx, admin, in, now); ok {
				return result, nil
			}
		}
		// Mismatch or no reusable session: the provider stays authoritative
		// for credentials, so fall through to a fresh login either way.
	}

	return s.freshLogin(ctx, admin, in, now)
}

// tryReuse returns a refreshed-session result when an active, unexpired
// session exists for this admin at this IP. A session bound to a different
// IP is never handed out.
func (s *Service) tryReuse(ctx context.Context, admin *Admin, in Input, now time.Time) (*Result, bool) {
	sess, err := s.sessions.FindUsableByAdminIP(ctx, admin.ID, in.IPAddress, now)
	if err != nil {
		return nil, false
	}

	sess.RecordUsage(now)
	if err := s.sessions.UpdateUsage(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh session usage",
			"session_id", sess.ID.String(),
			"error", err,
		)
	}

	token, err := s.tokens.Issue(admin.ID, sess.ID)
	if err != nil {
		return nil, false
	}

	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("refreshed_session").Inc()
		s.metrics.SessionsReused.Inc()
	}
	s.emit(ctx, audit.Event{
		AdminID:   admin.ID.String(),
		IPAddress: in.IPAddress,
		Action:    audit.ActionLoginReused,
		Outcome:   "success",
	})
	s.logger.InfoContext(ctx, "session reused",
		"admin_id", admin.ID.String(),
		"ip", in.IPAddress,
		"usage_count", sess.UsageCount,
	)

	return &Result{
		LoginType:   LoginTypeRefreshed,
		Admin:       admin,
		SessionID:   sess.ID,
		APIKey:      sess.APIKey,
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.APIKeyExpiresAt,
		Token:       token,
	}, true
}

// freshLogin submits credentials to the provider and materializes the local
// profile and a new session bound to the caller's IP.
func (s *Service) freshLogin(ctx context.Context, existing *Admin, in Input, now time.Time) (*Result, error) {
	resp, err := s.prov.Login(ctx, provider.LoginRequest{
		Username:   in.Username,
		Password:   in.Password,
		PortalType: s.cfg.PortalType,
		UserType:   s.cfg.UserType,
	})
	if err != nil {
		s.recordLoginFailure(ctx, in, err)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	admin := mergeProfile(existing, in.Username, string(hash), resp, now)
	if err := s.admins.Upsert(ctx, admin); err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:                id.NewSessionID(),
		AdminID:           admin.ID,
		IPAddress:         in.IPAddress,
		UserAgent:         in.UserAgent,
		DeviceDisplayName: device.DisplayName(in.UserAgent),
		APIKey:            resp.APIKey,
		AccessToken:       resp.AccessToken,
		RespID:            resp.RespID,
		CreatedAt:         now,
		APIKeyExpiresAt:   now.Add(s.cfg.APIKeyTTL),
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
		LastUsageAt:       now,
		UsageCount:        1,
		Active:            true,
	}
	if err := s.sessions.ReplaceActive(ctx, sess); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(admin.ID, sess.ID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("fresh_thyrocare").Inc()
		s.metrics.SessionsCreated.Inc()
		s.metrics.ActiveSessions.Inc()
	}
	s.emit(ctx, audit.Event{
		AdminID:   admin.ID.String(),
		IPAddress: in.IPAddress,
		Action:    audit.ActionLoginFresh,
		Outcome:   "success",
	})
	s.logger.InfoContext(ctx, "fresh provider login",
		"admin_id", admin.ID.String(),
		"ip", in.IPAddress,
		"session_id", sess.ID.String(),
	)

	return &Result{
		LoginType:   LoginTypeFresh,
		Admin:       admin,
		SessionID:   sess.ID,
		APIKey:      sess.APIKey,
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.APIKeyExpiresAt,
		Token:       token,
	}, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, in Input, err error) {
	action := audit.ActionLoginFailed
	outcome := "failed"
	if dErrors.HasCode(err, dErrors.CodeProviderBlocked) {
		action = audit.ActionLoginBlocked
		outcome = "blocked"
		if s.metrics != nil {
			s.metrics.ProviderBlocked.Inc()
			s.metrics.LoginAttempts.WithLabelValues("blocked").Inc()
		}
	} else if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("failed").Inc()
	}
	s.emit(ctx, audit.Event{
		IPAddress: in.IPAddress,
		Action:    action,
		Outcome:   outcome,
		ErrorKind: string(dErrors.CodeOf(err)),
	})
	s.logger.WarnContext(ctx, "provider login failed",
		"ip", in.IPAddress,
		"error", err,
	)
}

// Sessions lists an admin's sessions, newest first.
func (s *Service) Sessions(ctx context.Context, adminID id.AdminID) ([]*session.Session, error) {
	return s.sessions.ListByAdmin(ctx, adminID)
}

// VerifyToken resolves a gateway token to the admin and session it binds.
func (s *Service) VerifyToken(tokenString string) (id.AdminID, id.SessionID, error) {
	return s.tokens.Parse(tokenString)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, event)
}

// mergeProfile folds the provider's response fields into the local profile,
// preserving the existing ID on re-login.
func mergeProfile(existing *Admin, username, passwordHash string, resp *provider.LoginResponse, now time.Time) *Admin {
	admin := &Admin{
		ID:        id.NewAdminID(),
		CreatedAt: now,
	}
	if existing != nil {
		admin.ID = existing.ID
		admin.CreatedAt = existing.CreatedAt
	}
	admin.Username = username
	admin.PasswordHash = passwordHash
	admin.Name = resp.Name
	admin.Email = resp.Email
	admin.Mobile = resp.Mobile
	admin.ProviderRespID = resp.RespID
	admin.VerificationKey = resp.VerificationKey
	admin.TrackingPrivilege = resp.TrackingPrivilege == "Y"
	admin.OTPAccess = resp.OTPAccess == "Y"
	admin.IsPrepaid = resp.IsPrepaid == "Y"
	admin.UpdatedAt = now
	return admin
}
