package provider

// Request/response shapes mirror the provider's wire format, including its
// inconsistent field casing. Keep them confined to this package; domain code
// works with the gateway's own models.

// Credentials are the session-bound secrets attached to authenticated calls.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// LoginRequest is the payload for POST /api/Login/Login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	PortalType string `json:"portalType"`
	UserType   string `json:"userType"`
}

// LoginResponse carries the login-issued, time-bound credentials.
type LoginResponse struct {
	Response    string `json:"response"`
	APIKey      string `json:"apiKey"`
	AccessToken string `json:"accessToken"`
	RespID      string `json:"respId"`
	UserType    string `json:"userType"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Name        string `json:"name"`

	// Account capability flags mirrored into the local admin profile.
	VerificationKey   string `json:"verificationKey"`
	TrackingPrivilege string `json:"trackingPrivilege"`
	OTPAccess         string `json:"otpAccess"`
	IsPrepaid         string `json:"isPrepaid"`
}

// ProductsRequest is the payload for POST /api/productsmaster/Products.
type ProductsRequest struct {
	ProductType string `json:"ProductType"`
	APIKey      string `json:"ApiKey"`
}

// Product is one entry of the provider's product master.
type Product struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Rate      Rate     `json:"rate"`
	TestCount int      `json:"testCount"`
	Childs    []string `json:"childs"`
}

// Rate carries the provider's price pair for a product.
type Rate struct {
	B2C    float64 `json:"b2C"`
	Offer  float64 `json:"offerRate"`
	PayAmt float64 `json:"payAmt"`
}

// ProductsResponse is the product master payload.
type ProductsResponse struct {
	Response string    `json:"response"`
	Master   []Product `json:"master"`
}

// PincodeRequest is the payload for POST /api/TechsoApi/PincodeAvailability.
type PincodeRequest struct {
	APIKey  string `json:"ApiKey"`
	Pincode string `json:"Pincode"`
}

// PincodeResponse reports serviceability for a pincode.
type PincodeResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// SlotsRequest is the payload for POST /api/TechsoApi/GetAppointmentSlots.
type SlotsRequest struct {
	APIKey   string `json:"ApiKey"`
	Pincode  string `json:"Pincode"`
	Date     string `json:"Date"`
	BenCount int    `json:"BenCount"`
	Patients string `json:"Patients"`
	Items    string `json:"Items"`
}

// Slot is a bookable appointment window.
type Slot struct {
	ID       string `json:"id"`
	SlotTime string `json:"slot"`
}

// SlotsResponse lists available appointment slots.
type SlotsResponse struct {
	Response string `json:"response"`
	Slots    []Slot `json:"lSlotDataRes"`
}

// CartItem is one line of the cart sent for price validation.
type CartItem struct {
	ProductCode string  `json:"productCode"`
	ProductType string  `json:"productType"`
	Rate        float64 `json:"rate"`
}

// CartPricingRequest is the payload for the pricing/validation endpoint.
type CartPricingRequest struct {
	APIKey   string     `json:"ApiKey"`
	Items    []CartItem `json:"Items"`
	BenCount int        `json:"BenCount"`
}

// CartPricingLine is the provider's authoritative price for one cart line.
type CartPricingLine struct {
	ProductCode string  `json:"productCode"`
	ProductType string  `json:"productType"`
	Rate        float64 `json:"rate"`
	Discount    float64 `json:"discount"`
}

// CartPricingResponse carries authoritative prices and the collection-charge rule.
type CartPricingResponse struct {
	Response         string            `json:"response"`
	Lines            []CartPricingLine `json:"orderDetails"`
	CollectionCharge float64           `json:"collectionCharge"`
	MinOrderValue    float64           `json:"minOrderValue"`
}
