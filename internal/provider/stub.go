package provider

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	dErrors "labgate/pkg/domain-errors"
)

// StubClient is a deterministic in-process provider used by tests and local
// dev mode. It mimics real-world latency and can be told to fail, block, or
// reject credentials.
type StubClient struct {
	Latency       time.Duration
	FailWith      error // returned from every call when set
	BlockLogins   bool  // respond with the abuse-block string on login
	RejectLogins  bool  // respond with invalid-credentials on login
	Serviceable   bool  // pincode availability answer
	CollectionMin float64

	loginCalls   atomic.Int64
	pricingCalls atomic.Int64
}

// NewStubClient returns a stub with a serviceable pincode and the observed
// ₹300 collection-charge threshold.
func NewStubClient() *StubClient {
	return &StubClient{Serviceable: true, CollectionMin: 300}
}

// LoginCalls reports how many login attempts reached the stub.
func (s *StubClient) LoginCalls() int64 { return s.loginCalls.Load() }

func (s *StubClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	s.loginCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if s.BlockLogins {
		return nil, dErrors.New(dErrors.CodeProviderBlocked, "provider has blocked logins for this account")
	}
	if s.RejectLogins {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "provider rejected credentials: Invalid Credentials")
	}
	return &LoginResponse{
		Response:          "Success",
		APIKey:            "stub-key-" + uuid.New().String(),
		AccessToken:       "stub-token-" + uuid.New().String(),
		RespID:            "RSP" + uuid.New().String()[:8],
		UserType:          req.UserType,
		Name:              req.Username,
		Email:             req.Username + "@example.test",
		TrackingPrivilege: "Y",
		OTPAccess:         "Y",
		IsPrepaid:         "N",
	}, nil
}

func (s *StubClient) Products(ctx context.Context, apiKey, productType string) (*ProductsResponse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	return &ProductsResponse{
		Response: "Success",
		Master: []Product{
			{Code: "TSH", Name: "Thyroid Stimulating Hormone", Type: "TEST", Rate: Rate{B2C: 200, PayAmt: 180}},
			{Code: "AAROGYAM-C", Name: "Aarogyam C", Type: "PROFILE", Rate: Rate{B2C: 999, PayAmt: 899}, Childs: []string{"TSH", "CBC"}},
		},
	}, nil
}

func (s *StubClient) PincodeAvailability(ctx context.Context, apiKey, pincode string) (*PincodeResponse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	status := "N"
	if s.Serviceable {
		status = "Y"
	}
	return &PincodeResponse{Response: "Success", Status: status}, nil
}

func (s *StubClient) AppointmentSlots(ctx context.Context, req SlotsRequest) (*SlotsResponse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	return &SlotsResponse{
		Response: "Success",
		Slots: []Slot{
			{ID: "1", SlotTime: "06:00-07:00"},
			{ID: "2", SlotTime: "07:00-08:00"},
		},
	}, nil
}

// CartPricing echoes the submitted rates as authoritative and applies the
// collection-charge rule below the configured minimum.
func (s *StubClient) CartPricing(ctx context.Context, req CartPricingRequest) (*CartPricingResponse, error) {
	s.pricingCalls.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	lines := make([]CartPricingLine, 0, len(req.Items))
	var subtotal float64
	for _, item := range req.Items {
		lines = append(lines, CartPricingLine{
			ProductCode: item.ProductCode,
			ProductType: item.ProductType,
			Rate:        item.Rate,
		})
		subtotal += item.Rate
	}
	var charge float64
	if subtotal < s.CollectionMin {
		charge = 50
	}
	return &CartPricingResponse{
		Response:         "Success",
		Lines:            lines,
		CollectionCharge: charge,
		MinOrderValue:    s.CollectionMin,
	}, nil
}

func (s *StubClient) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Latency):
		return nil
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "provider call timed out")
	}
}

var _ API = (*StubClient)(nil)
