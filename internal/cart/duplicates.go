package cart

import (
	"fmt"
	"strings"
)

// Catalog maps a profile's product code to the codes of the tests it bundles.
// Codes are compared case-insensitively.
type Catalog map[string][]string

const (
	typeTest    = "TEST"
	typeProfile = "PROFILE"
	typeOffer   = "OFFER"
)

// isBundle reports whether a product type carries child tests in the product
// master. Profiles and offers both do.
func isBundle(productType string) bool {
	return strings.EqualFold(productType, typeProfile) || strings.EqualFold(productType, typeOffer)
}

// CheckAdd reports overlap between a candidate item and the current cart
// using the product master's bundle composition. Two shapes exist:
//
//   - adding a TEST that a carted PROFILE or OFFER already bundles is
//     prevented, the test would be billed twice;
//   - adding a PROFILE or OFFER that bundles already-carted TESTs is allowed,
//     but the client should remove the listed standalone tests first.
func CheckAdd(catalog Catalog, items []Item, candidate Item) DuplicateReport {
	switch strings.ToUpper(candidate.ProductType) {
	case typeTest:
		for _, it := range items {
			if !isBundle(it.ProductType) {
				continue
			}
			if containsCode(catalog[normalizeCode(it.ProductCode)], candidate.ProductCode) {
				return DuplicateReport{
					HasDuplicates: true,
					Action:        ActionPrevent,
					Message: fmt.Sprintf("%s is already included in the carted bundle %s",
						candidate.ProductCode, it.ProductCode),
				}
			}
		}
	case typeProfile, typeOffer:
		children := catalog[normalizeCode(candidate.ProductCode)]
		var dups []string
		for _, it := range items {
			if strings.EqualFold(it.ProductType, typeTest) && containsCode(children, it.ProductCode) {
				dups = append(dups, it.ProductCode)
			}
		}
		if len(dups) > 0 {
			return DuplicateReport{
				HasDuplicates:  true,
				Action:         ActionRemove,
				DuplicateTests: dups,
				Message: fmt.Sprintf("%s already covers %d carted test(s)",
					candidate.ProductCode, len(dups)),
			}
		}
	}
	return DuplicateReport{}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func containsCode(codes []string, code string) bool {
	target := normalizeCode(code)
	for _, c := range codes {
		if normalizeCode(c) == target {
			return true
		}
	}
	return false
}
