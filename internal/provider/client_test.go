package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "labgate/pkg/domain-errors"
)

func serve(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestLogin_Success(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointLogin, r.URL.Path)
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DSA", req.PortalType)
		_ = json.NewEncoder(w).Encode(LoginResponse{
			Response:    "Success",
			APIKey:      "key-123",
			AccessToken: "token-456",
			RespID:      "RSP01",
		})
	})

	resp, err := client.Login(context.Background(), LoginRequest{
		Username: "acme", Password: "pw", PortalType: "DSA", UserType: "DSA",
	})
	require.NoError(t, err)
	assert.Equal(t, "key-123", resp.APIKey)
}

func TestLogin_BlockedStringBecomesProviderBlocked(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(LoginResponse{
			Response: "Your login has been blocked. Please contact support",
		})
	})

	_, err := client.Login(context.Background(), LoginRequest{Username: "acme", Password: "pw"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderBlocked))
}

func TestLogin_NonSuccessBecomesUnauthorized(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(LoginResponse{Response: "Invalid Credentials"})
	})

	_, err := client.Login(context.Background(), LoginRequest{Username: "acme", Password: "bad"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestLogin_SuccessWithoutKeyIsRejected(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(LoginResponse{Response: "Success"})
	})

	_, err := client.Login(context.Background(), LoginRequest{Username: "acme", Password: "pw"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestPost_ServerErrorBecomesUnavailable(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Products(context.Background(), "key", "ALL")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.True(t, IsRetryable(err))
}

func TestPost_ClientErrorBecomesValidation(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Products(context.Background(), "key", "ALL")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.False(t, IsRetryable(err))
}

func TestPost_TimeoutBecomesTimeout(t *testing.T) {
	blocked := make(chan struct{})
	defer close(blocked)
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-blocked
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Products(ctx, "key", "ALL")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.True(t, IsRetryable(err))
}

func TestIsBlockedResponse_MatchesCaseInsensitively(t *testing.T) {
	assert.True(t, IsBlockedResponse("Your Login Has Been Blocked. Try after some time"))
	assert.False(t, IsBlockedResponse("Invalid Credentials"))
	assert.False(t, IsBlockedResponse("Success"))
}

func TestCartPricing_PassesThroughChargeFields(t *testing.T) {
	client := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointCart, r.URL.Path)
		_ = json.NewEncoder(w).Encode(CartPricingResponse{
			Response:         "Success",
			Lines:            []CartPricingLine{{ProductCode: "TSH", Rate: 200}},
			CollectionCharge: 50,
			MinOrderValue:    300,
		})
	})

	resp, err := client.CartPricing(context.Background(), CartPricingRequest{
		APIKey: "key", Items: []CartItem{{ProductCode: "TSH", Rate: 200}}, BenCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, resp.CollectionCharge)
	assert.Equal(t, 300.0, resp.MinOrderValue)
}
