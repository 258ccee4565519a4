package httptransport

import (
	"context"

	"labgate/internal/cart"
	"labgate/internal/login"
	"labgate/internal/provider"
	"labgate/internal/session"
	id "labgate/pkg/domain"
)

// LoginService is the slice of the login orchestrator the transport needs.
type LoginService interface {
	Login(ctx context.Context, in login.Input) (*login.Result, error)
	Sessions(ctx context.Context, adminID id.AdminID) ([]*session.Session, error)
	VerifyToken(tokenString string) (id.AdminID, id.SessionID, error)
}

// CartService reconciles carts and runs overlap checks.
type CartService interface {
	ValidateAndAdjustCart(ctx context.Context, adminID id.AdminID, ip string, items []cart.Item, benCount int) (*cart.ValidatedCart, error)
	CheckDuplicates(ctx context.Context, adminID id.AdminID, ip string, items []cart.Item, candidate cart.Item) (*cart.DuplicateReport, error)
}

// ProviderService is the authenticated read surface of the executor.
type ProviderService interface {
	Products(ctx context.Context, adminID id.AdminID, ip, productType string) (*provider.ProductsResponse, error)
	PincodeAvailability(ctx context.Context, adminID id.AdminID, ip, pincode string) (*provider.PincodeResponse, error)
	AppointmentSlots(ctx context.Context, adminID id.AdminID, ip string, req provider.SlotsRequest) (*provider.SlotsResponse, error)
}
