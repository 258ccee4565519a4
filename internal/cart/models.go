// Package cart reconciles client-side cart prices against the provider's
// authoritative rates and detects profile/test overlap before an item lands
// in the cart.
package cart

// Item is one cart line as submitted by the client.
type Item struct {
	ProductCode string  `json:"productCode"`
	ProductType string  `json:"productType"`
	Name        string  `json:"name,omitempty"`
	Rate        float64 `json:"rate"`
}

// Adjustment records one line whose client-submitted rate differed from the
// provider's authoritative rate.
type Adjustment struct {
	ProductCode   string  `json:"productCode"`
	SubmittedRate float64 `json:"submittedRate"`
	AppliedRate   float64 `json:"appliedRate"`
}

// ValidatedCart is the reconciled cart returned to the client. When
// ValidationApplied is false the provider could not be reached and the
// client-submitted prices were passed through unchanged.
type ValidatedCart struct {
	Items               []Item       `json:"items"`
	Subtotal            float64      `json:"subtotal"`
	HasCollectionCharge bool         `json:"hasCollectionCharge"`
	CollectionCharge    float64      `json:"collectionCharge"`
	Total               float64      `json:"total"`
	ValidationApplied   bool         `json:"validationApplied"`
	Adjustments         []Adjustment `json:"adjustments,omitempty"`
}

// DuplicateAction tells the client what to do about an overlap.
type DuplicateAction string

const (
	// ActionPrevent blocks adding a test already covered by a carted profile.
	ActionPrevent DuplicateAction = "prevent"
	// ActionRemove asks the client to drop individually carted tests that the
	// profile being added already includes.
	ActionRemove DuplicateAction = "remove"
)

// DuplicateReport is the outcome of a pre-add overlap check.
type DuplicateReport struct {
	HasDuplicates  bool            `json:"hasDuplicates"`
	Action         DuplicateAction `json:"action,omitempty"`
	DuplicateTests []string        `json:"duplicateTests,omitempty"`
	Message        string          `json:"message,omitempty"`
}
