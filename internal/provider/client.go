// Package provider implements the HTTP client for the upstream lab-testing
// partner. It does request shaping and error classification only; pooling,
// throttling and session resolution live in the layers above it.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "labgate/pkg/domain-errors"
)

// Endpoint paths on the provider.
const (
	EndpointLogin    = "/api/Login/Login"
	EndpointProducts = "/api/productsmaster/Products"
	EndpointPincode  = "/api/TechsoApi/PincodeAvailability"
	EndpointSlots    = "/api/TechsoApi/GetAppointmentSlots"
	EndpointCart     = "/api/TechsoApi/ViewCartDtl"
)

// API is the full provider surface consumed by the gateway. The stub client
// implements the same interface for tests and local development.
type API interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Products(ctx context.Context, apiKey, productType string) (*ProductsResponse, error)
	PincodeAvailability(ctx context.Context, apiKey, pincode string) (*PincodeResponse, error)
	AppointmentSlots(ctx context.Context, req SlotsRequest) (*SlotsResponse, error)
	CartPricing(ctx context.Context, req CartPricingRequest) (*CartPricingResponse, error)
}

// Client talks to the real provider over HTTP. Every call is bounded by the
// configured timeout; a timeout counts as a failure for breaker accounting.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a provider client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login submits credentials to the provider. A blocked-account response is
// translated to CodeProviderBlocked; any other non-success response becomes
// CodeUnauthorized.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.post(ctx, EndpointLogin, req, &resp); err != nil {
		return nil, err
	}
	if IsBlockedResponse(resp.Response) {
		return nil, dErrors.New(dErrors.CodeProviderBlocked, "provider has blocked logins for this account")
	}
	if resp.Response != responseSuccess || resp.APIKey == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "provider rejected credentials: "+resp.Response)
	}
	return &resp, nil
}

// Products fetches the product master for one product type.
func (c *Client) Products(ctx context.Context, apiKey, productType string) (*ProductsResponse, error) {
	var resp ProductsResponse
	req := ProductsRequest{ProductType: productType, APIKey: apiKey}
	if err := c.post(ctx, EndpointProducts, req, &resp); err != nil {
		return nil, err
	}
	if resp.Response != responseSuccess {
		return nil, dErrors.New(dErrors.CodeValidation, "product lookup failed: "+resp.Response)
	}
	return &resp, nil
}

// PincodeAvailability checks home-collection serviceability for a pincode.
func (c *Client) PincodeAvailability(ctx context.Context, apiKey, pincode string) (*PincodeResponse, error) {
	var resp PincodeResponse
	req := PincodeRequest{APIKey: apiKey, Pincode: pincode}
	if err := c.post(ctx, EndpointPincode, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AppointmentSlots lists bookable collection slots for a pincode and date.
func (c *Client) AppointmentSlots(ctx context.Context, req SlotsRequest) (*SlotsResponse, error) {
	var resp SlotsResponse
	if err := c.post(ctx, EndpointSlots, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CartPricing validates a cart against the provider's authoritative prices.
func (c *Client) CartPricing(ctx context.Context, req CartPricingRequest) (*CartPricingResponse, error) {
	var resp CartPricingResponse
	if err := c.post(ctx, EndpointCart, req, &resp); err != nil {
		return nil, err
	}
	if resp.Response != responseSuccess {
		return nil, dErrors.New(dErrors.CodeValidation, "cart pricing failed: "+resp.Response)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build provider request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("provider returned %d for %s", resp.StatusCode, endpoint))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("provider returned %d for %s", resp.StatusCode, endpoint))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "decode provider response: "+endpoint)
	}
	return nil
}

var _ API = (*Client)(nil)
