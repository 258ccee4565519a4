package httptransport

import (
	"context"
	"net/http"
	"strings"

	"labgate/internal/transport/httputil"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

type adminIDKey struct{}
type sessionIDKey struct{}

// requireAuth verifies the gateway bearer token and stashes the admin and
// session identities in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		adminID, sessionID, err := h.login.VerifyToken(token)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), adminIDKey{}, adminID)
		ctx = context.WithValue(ctx, sessionIDKey{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminFrom retrieves the authenticated admin ID from the context.
func adminFrom(ctx context.Context) (id.AdminID, bool) {
	adminID, ok := ctx.Value(adminIDKey{}).(id.AdminID)
	return adminID, ok
}
