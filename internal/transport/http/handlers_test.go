package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labgate/internal/cart"
	"labgate/internal/executor"
	"labgate/internal/login"
	loginstore "labgate/internal/login/store"
	"labgate/internal/platform/logger"
	"labgate/internal/provider"
	sessionstore "labgate/internal/session/store"
	"labgate/pkg/platform/circuit"
	"labgate/pkg/platform/queue"
)

type gateway struct {
	router http.Handler
	stub   *provider.StubClient
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	log := logger.New()
	stub := provider.NewStubClient()
	sessions := sessionstore.NewInMemory()
	admins := loginstore.NewInMemory()

	breaker := circuit.New("provider")
	q := queue.New()
	t.Cleanup(q.Close)

	exec, err := executor.New(sessions, breaker, q, stub)
	require.NoError(t, err)

	tokens := login.NewTokenIssuer("test-key", time.Hour)
	loginSvc, err := login.New(admins, sessions, exec, tokens,
		login.Config{PortalType: "DSA", UserType: "DSA", SessionTTL: 24 * time.Hour})
	require.NoError(t, err)

	cartSvc, err := cart.New(exec)
	require.NoError(t, err)

	handler := NewHandler(loginSvc, cartSvc, exec, log)
	return &gateway{
		router: NewRouter(handler, log, 30*time.Second),
		stub:   stub,
	}
}

func (g *gateway) do(t *testing.T, method, path, ip, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Forwarded-For", ip)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

func (g *gateway) loginAs(t *testing.T, ip string) string {
	t.Helper()
	rec := g.do(t, http.MethodPost, "/api/v1/auth/login", ip,
		"", map[string]string{"username": "acme-dsa", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginEndpoint_FreshThenReused(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodPost, "/api/v1/auth/login", "203.0.113.10",
		"", map[string]string{"username": "acme-dsa", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var first struct {
		LoginType string `json:"loginType"`
		APIKey    string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "FRESH_THYROCARE", first.LoginType)
	assert.NotEmpty(t, first.APIKey)

	rec = g.do(t, http.MethodPost, "/api/v1/auth/login", "203.0.113.10",
		"", map[string]string{"username": "acme-dsa", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var second struct {
		LoginType string `json:"loginType"`
		APIKey    string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, "REFRESHED_SESSION", second.LoginType)
	assert.Equal(t, first.APIKey, second.APIKey)
	assert.Equal(t, int64(1), g.stub.LoginCalls())
}

func TestLoginEndpoint_ProviderBlockedIs429(t *testing.T) {
	g := newGateway(t)
	g.stub.BlockLogins = true

	rec := g.do(t, http.MethodPost, "/api/v1/auth/login", "203.0.113.10",
		"", map[string]string{"username": "acme-dsa", "password": "s3cret"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider_blocked")
}

func TestLoginEndpoint_BadBodyIs400(t *testing.T) {
	g := newGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticatedRoute_MissingTokenIs401(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodGet, "/api/v1/products", "203.0.113.10", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductsEndpoint_ServesWithSession(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodGet, "/api/v1/products?type=ALL", "203.0.113.10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TSH")
}

func TestProductsEndpoint_OtherIPIsAuthExpired(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	// Same valid token, different source IP: the session is bound to the
	// login IP and must not serve here.
	rec := g.do(t, http.MethodGet, "/api/v1/products", "198.51.100.7", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_expired")
}

func TestPincodeEndpoint_Serviceable(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodGet, "/api/v1/pincode/400001", "203.0.113.10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Serviceable bool `json:"serviceable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Serviceable)
}

func TestPincodeEndpoint_BadLengthIs400(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodGet, "/api/v1/pincode/1234", "203.0.113.10", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotsEndpoint_ListsSlots(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodPost, "/api/v1/slots", "203.0.113.10", token,
		map[string]any{"pincode": "400001", "date": "2026-03-05", "benCount": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "06:00-07:00")
}

func TestCartValidateEndpoint_AppliesCollectionCharge(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodPost, "/api/v1/cart/validate", "203.0.113.10", token,
		map[string]any{
			"items":    []map[string]any{{"productCode": "TSH", "productType": "TEST", "rate": 200}},
			"benCount": 1,
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ValidationApplied   bool    `json:"validationApplied"`
		HasCollectionCharge bool    `json:"hasCollectionCharge"`
		CollectionCharge    float64 `json:"collectionCharge"`
		Total               float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ValidationApplied)
	assert.True(t, resp.HasCollectionCharge)
	assert.Equal(t, 50.0, resp.CollectionCharge)
	assert.Equal(t, 250.0, resp.Total)
}

func TestCartDuplicatesEndpoint_PreventsCoveredTest(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodPost, "/api/v1/cart/duplicates", "203.0.113.10", token,
		map[string]any{
			"items":     []map[string]any{{"productCode": "AAROGYAM-C", "productType": "PROFILE", "rate": 899}},
			"candidate": map[string]any{"productCode": "TSH", "productType": "TEST", "rate": 200},
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		HasDuplicates bool   `json:"hasDuplicates"`
		Action        string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasDuplicates)
	assert.Equal(t, "prevent", resp.Action)
}

func TestSessionsEndpoint_ListsWithoutSecrets(t *testing.T) {
	g := newGateway(t)
	token := g.loginAs(t, "203.0.113.10")

	rec := g.do(t, http.MethodGet, "/api/v1/sessions", "203.0.113.10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "203.0.113.10")
	assert.NotContains(t, rec.Body.String(), "stub-key", "API keys must not leak into session listings")
}

func TestHealthz(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodGet, "/healthz", "203.0.113.10", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
