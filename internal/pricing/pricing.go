// Package pricing holds the pure derivation functions of the storefront:
// discounts, savings and the related-items suggestion list. Nothing here
// mutates cart state or performs I/O.
package pricing

import (
	"math/rand"
	"strconv"

	"github.com/naiyo-24/Mommynme/internal/domain"
)

// DiscountedPrice applies a string-encoded percentage offer to a price.
// An absent or unparsable offer leaves the price unchanged. The result is
// clamped at zero in case an offer above 100% ever slips through.
func DiscountedPrice(price float64, offer string) float64 {
	if offer == "" {
		return price
	}
	pct, err := strconv.ParseFloat(offer, 64)
	if err != nil {
		return price
	}
	discounted := price - price*pct/100
	if discounted < 0 {
		return 0
	}
	return discounted
}

// TotalSavings sums, over all lines, the difference between the snapshotted
// base price and the discounted price, times quantity.
func TotalSavings(lines []domain.CartLine) float64 {
	var savings float64
	for _, line := range lines {
		perUnit := line.Item.Price - DiscountedPrice(line.Item.Price, line.Item.Offer)
		savings += perUnit * float64(line.Quantity)
	}
	return savings
}

// Recommend suggests up to n catalog items to show next to the cart.
//
// With an empty cart it returns n random distinct items. Otherwise it picks
// items sharing a category with something in the cart, excluding items
// already in the cart, and tops up with random remaining catalog items when
// the category matches run short. No item id is ever repeated and no
// suggested item is already in the cart. Ordering is arbitrary.
func Recommend(lines []domain.CartLine, catalog []domain.CatalogItem, n int) []domain.CatalogItem {
	if n <= 0 {
		return nil
	}

	inCart := make(map[string]bool, len(lines))
	categories := make(map[string]bool, len(lines))
	for _, line := range lines {
		inCart[line.Item.ID] = true
		categories[line.Item.Category] = true
	}

	if len(lines) == 0 {
		shuffled := shuffle(catalog)
		if len(shuffled) > n {
			shuffled = shuffled[:n]
		}
		return shuffled
	}

	var matched, rest []domain.CatalogItem
	for _, item := range catalog {
		if inCart[item.ID] {
			continue
		}
		if categories[item.Category] {
			matched = append(matched, item)
		} else {
			rest = append(rest, item)
		}
	}

	if len(matched) >= n {
		return matched[:n]
	}

	for _, item := range shuffle(rest) {
		if len(matched) == n {
			break
		}
		matched = append(matched, item)
	}
	return matched
}

func shuffle(items []domain.CatalogItem) []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
