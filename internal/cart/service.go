package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"labgate/internal/audit"
	"labgate/internal/platform/metrics"
	"labgate/internal/provider"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

const (
	// defaultMinOrderValue is the subtotal below which the provider levies a
	// collection charge, in rupees. The provider's response overrides it.
	defaultMinOrderValue = 300
	// defaultCollectionCharge is the fallback charge applied when the
	// provider did not state one.
	defaultCollectionCharge = 50

	catalogTTL = 5 * time.Minute
)

// ProviderCalls is the slice of the executor the cart service needs.
type ProviderCalls interface {
	CartPricing(ctx context.Context, adminID id.AdminID, ip string, req provider.CartPricingRequest) (*provider.CartPricingResponse, error)
	Products(ctx context.Context, adminID id.AdminID, ip, productType string) (*provider.ProductsResponse, error)
}

// AuditPublisher records reconciliation outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates carts against provider pricing and runs overlap checks.
type Service struct {
	prov    ProviderCalls
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *metrics.Metrics
	now     func() time.Time

	minOrderValue    float64
	collectionCharge float64

	mu        sync.Mutex
	catalog   Catalog
	catalogAt time.Time
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

// WithMetrics enables reconciliation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
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

// WithMinOrderValue overrides the fallback collection-charge threshold.
func WithMinOrderValue(v float64) Option {
	return func(s *Service) {
		if v > 0 {
			s.minOrderValue = v
		}
	}
}

// New constructs the cart service.
func New(prov ProviderCalls, opts ...Option) (*Service, error) {
	if prov == nil {
		return nil, errors.New("provider executor is required")
	}
	s := &Service{
		prov:             prov,
		logger:           slog.Default(),
		now:              time.Now,
		minOrderValue:    defaultMinOrderValue,
		collectionCharge: defaultCollectionCharge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ValidateAndAdjustCart replaces client-submitted rates with the provider's
// authoritative ones and applies the collection-charge rule. The input slice
// is never mutated and re-validating an already validated cart yields the
// same result. If the provider cannot price the cart the submitted rates are
// passed through with ValidationApplied set to false rather than failing the
// whole request.
func (s *Service) ValidateAndAdjustCart(ctx context.Context, adminID id.AdminID, ip string, items []Item, benCount int) (*ValidatedCart, error) {
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "cart is empty")
	}
	if benCount < 1 {
		benCount = 1
	}

	req := provider.CartPricingRequest{BenCount: benCount}
	for _, it := range items {
		req.Items = append(req.Items, provider.CartItem{
			ProductCode: it.ProductCode,
			ProductType: it.ProductType,
			Rate:        it.Rate,
		})
	}

	resp, err := s.prov.CartPricing(ctx, adminID, ip, req)
	if err != nil {
		// Session problems must surface so the client re-authenticates;
		// anything else degrades to the unvalidated fallback.
		if dErrors.HasCode(err, dErrors.CodeAuthExpired) {
			return nil, err
		}
		return s.fallback(ctx, adminID, ip, items, err), nil
	}

	authoritative := make(map[string]float64, len(resp.Lines))
	for _, line := range resp.Lines {
		authoritative[normalizeCode(line.ProductCode)] = line.Rate - line.Discount
	}

	out := &ValidatedCart{
		Items:             make([]Item, 0, len(items)),
		ValidationApplied: true,
	}
	for _, it := range items {
		applied := it
		if rate, ok := authoritative[normalizeCode(it.ProductCode)]; ok && rate != it.Rate {
			out.Adjustments = append(out.Adjustments, Adjustment{
				ProductCode:   it.ProductCode,
				SubmittedRate: it.Rate,
				AppliedRate:   rate,
			})
			applied.Rate = rate
		}
		out.Items = append(out.Items, applied)
		out.Subtotal += applied.Rate
	}

	minOrder := resp.MinOrderValue
	if minOrder <= 0 {
		minOrder = s.minOrderValue
	}
	if out.Subtotal < minOrder {
		charge := resp.CollectionCharge
		if charge <= 0 {
			charge = s.collectionCharge
		}
		out.HasCollectionCharge = true
		out.CollectionCharge = charge
	}
	out.Total = out.Subtotal + out.CollectionCharge

	outcome := "validated"
	if len(out.Adjustments) > 0 {
		outcome = "adjusted"
	}
	if s.metrics != nil {
		s.metrics.CartReconciliation.WithLabelValues(outcome).Inc()
	}
	s.emit(ctx, audit.Event{
		AdminID:   adminID.String(),
		IPAddress: ip,
		Action:    audit.ActionCartReconciled,
		Outcome:   outcome,
	})
	return out, nil
}

// fallback returns the cart priced exactly as submitted, flagged unvalidated.
func (s *Service) fallback(ctx context.Context, adminID id.AdminID, ip string, items []Item, cause error) *ValidatedCart {
	out := &ValidatedCart{Items: make([]Item, len(items))}
	copy(out.Items, items)
	for _, it := range items {
		out.Subtotal += it.Rate
	}
	if out.Subtotal < s.minOrderValue {
		out.HasCollectionCharge = true
		out.CollectionCharge = s.collectionCharge
	}
	out.Total = out.Subtotal + out.CollectionCharge

	if s.metrics != nil {
		s.metrics.CartReconciliation.WithLabelValues("fallback").Inc()
	}
	s.emit(ctx, audit.Event{
		AdminID:   adminID.String(),
		IPAddress: ip,
		Action:    audit.ActionCartFallback,
		Outcome:   "fallback",
		ErrorKind: string(dErrors.CodeOf(cause)),
	})
	s.logger.WarnContext(ctx, "cart validation fell back to submitted prices",
		"admin_id", adminID.String(),
		"error", cause,
	)
	return out
}

// CheckDuplicates runs the pre-add overlap check against the product master.
func (s *Service) CheckDuplicates(ctx context.Context, adminID id.AdminID, ip string, items []Item, candidate Item) (*DuplicateReport, error) {
	if candidate.ProductCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "candidate product code is required")
	}
	catalog, err := s.loadCatalog(ctx, adminID, ip)
	if err != nil {
		return nil, err
	}
	report := CheckAdd(catalog, items, candidate)
	return &report, nil
}

// loadCatalog fetches profile composition from the product master, cached
// briefly so overlap checks do not hammer the slow provider.
func (s *Service) loadCatalog(ctx context.Context, adminID id.AdminID, ip string) (Catalog, error) {
	s.mu.Lock()
	if s.catalog != nil && s.now().Sub(s.catalogAt) < catalogTTL {
		cached := s.catalog
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	resp, err := s.prov.Products(ctx, adminID, ip, "ALL")
	if err != nil {
		return nil, err
	}
	catalog := make(Catalog)
	for _, p := range resp.Master {
		if len(p.Childs) > 0 {
			catalog[normalizeCode(p.Code)] = p.Childs
		}
	}

	s.mu.Lock()
	s.catalog = catalog
	s.catalogAt = s.now()
	s.mu.Unlock()
	return catalog, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, event)
}
