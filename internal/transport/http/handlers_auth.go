package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"labgate/internal/login"
	"labgate/internal/platform/middleware"
	"labgate/internal/transport/httputil"
	dErrors "labgate/pkg/domain-errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	LoginType   string       `json:"loginType"`
	Token       string       `json:"token"`
	APIKey      string       `json:"apiKey"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Admin       adminProfile `json:"admin"`
}

type adminProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Mobile            string `json:"mobile"`
	TrackingPrivilege bool   `json:"trackingPrivilege"`
	OTPAccess         bool   `json:"otpAccess"`
	IsPrepaid         bool   `json:"isPrepaid"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.login.Login(r.Context(), login.Input{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: middleware.GetClientIP(r.Context()),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		LoginType:   string(result.LoginType),
		Token:       result.Token,
		APIKey:      result.APIKey,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
		Admin: adminProfile{
			ID:                result.Admin.ID.String(),
			Username:          result.Admin.Username,
			Name:              result.Admin.Name,
			Email:             result.Admin.Email,
			Mobile:            result.Admin.Mobile,
			TrackingPrivilege: result.Admin.TrackingPrivilege,
			OTPAccess:         result.Admin.OTPAccess,
			IsPrepaid:         result.Admin.IsPrepaid,
		},
	})
}

type sessionView struct {
	ID          string    `json:"id"`
	IPAddress   string    `json:"ipAddress"`
	Device      string    `json:"device"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	LastUsageAt time.Time `json:"lastUsageAt"`
	UsageCount  int       `json:"usageCount"`
	Active      bool      `json:"active"`
}

// handleSessions lists the caller's sessions, active and historical. API keys
// and access tokens never appear here.
func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	sessions, err := h.login.Sessions(r.Context(), adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:          s.ID.String(),
			IPAddress:   s.IPAddress,
			Device:      s.DeviceDisplayName,
			CreatedAt:   s.CreatedAt,
			ExpiresAt:   s.ExpiresAt,
			LastUsageAt: s.LastUsageAt,
			UsageCount:  s.UsageCount,
			Active:      s.Active,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}
