package service

import (
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
)

// ResolveRate picks the effective rate and price convention for one item.
//
// Packaged goods carry a statutory rate on the item and their printed price
// always includes it; the restaurant profile is ignored. Service lines use the
// restaurant default rate only while GST is enabled.
func ResolveRate(item taxdomain.ItemTaxAttributes, profile taxdomain.TaxProfile) taxdomain.Resolution {
	if item.IsPackagedGood {
		return taxdomain.Resolution{
			EffectiveRate:    nonNegative(item.TaxRate),
			IsPackaged:       true,
			PricesIncludeTax: true,
		}
	}

	if !profile.GSTEnabled {
		return taxdomain.Resolution{EffectiveRate: decimal.Zero}
	}

	return taxdomain.Resolution{
		EffectiveRate:    nonNegative(profile.DefaultTaxRate),
		PricesIncludeTax: profile.PricesIncludeTax,
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
