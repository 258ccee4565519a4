package login

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

// Claims carries the gateway token payload: which admin, which session.
type Claims struct {
	AdminID   string `json:"adm"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the HS256 gateway tokens handed out after
// login so later calls resolve their session without resending credentials.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with the given key and TTL.
func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue signs a token binding the admin to one session.
func (t *TokenIssuer) Issue(adminID id.AdminID, sessionID id.SessionID) (string, error) {
	now := t.now()
	claims := Claims{
		AdminID:   adminID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "labgate",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign gateway token")
	}
	return signed, nil
}

// Parse verifies a gateway token and returns the identities it binds.
func (t *TokenIssuer) Parse(tokenString string) (id.AdminID, id.SessionID, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return t.signingKey, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return id.AdminID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid gateway token")
	}
	adminID, err := id.ParseAdminID(claims.AdminID)
	if err != nil {
		return id.AdminID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid gateway token")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return id.AdminID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid gateway token")
	}
	return adminID, sessionID, nil
}
