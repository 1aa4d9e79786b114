package service

import (
	"fmt"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

// ItemKey combines a product id with its normalized variant label.
func ItemKey(productID, variant string) string {
	v := domain.NormalizeVariant(variant)
	if v == "" {
		return productID
	}
	return productID + "::" + v
}

// NormalizeItems flattens structured line items into normalized items, in
// order. Legacy string items and items with a quantity below 1 are dropped
// and counted in skipped. A repeated product/variant pair gets a "#n" suffix,
// bumped until the key is not already issued, so keys stay unique.
func NormalizeItems(items []domain.LineItem) (normalized []domain.NormalizedItem, skipped int) {
	issued := make(map[string]bool)
	for _, li := range items {
		if li.IsLegacy() || li.Item.Quantity < 1 {
			skipped++
			continue
		}

		it := li.Item
		base := ItemKey(it.ProductID, it.Variant)
		key := base
		for n := 2; issued[key]; n++ {
			key = fmt.Sprintf("%s#%d", base, n)
		}
		issued[key] = true

		normalized = append(normalized, domain.NormalizedItem{
			Key:       key,
			ProductID: it.ProductID,
			Name:      it.Name,
			Variant:   domain.NormalizeVariant(it.Variant),
			Needed:    it.Quantity,
		})
	}
	return normalized, skipped
}
