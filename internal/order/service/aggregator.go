package service

import (
	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
	"github.com/smallbiznis/qrdine/internal/order/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	taxservice "github.com/smallbiznis/qrdine/internal/tax/service"
)

// Aggregate prices every cart line and sums the rounded line figures.
//
// The cart's unit price is authoritative. Tax attributes come from the
// catalog; when an item is missing from the catalog the cart's own copy is
// used and the line is reported in Fallbacks. Items come back without IDs,
// order ID or timestamps.
func Aggregate(lines []domain.CartLine, profile taxdomain.TaxProfile, catalog map[snowflake.ID]menudomain.MenuItem) domain.Totals {
	totals := domain.Totals{
		Items:         make([]domain.OrderItem, 0, len(lines)),
		SubtotalExTax: decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalIncTax:   decimal.Zero,
	}

	for i, line := range lines {
		lineNo := i + 1

		attrs, name, hsn, found := lineAttributes(line, catalog)
		res := taxservice.ResolveRate(attrs, profile)
		amounts := taxservice.ComputeLine(line.UnitPrice, line.Quantity, res.EffectiveRate, res.PricesIncludeTax)

		if !found {
			totals.Fallbacks = append(totals.Fallbacks, domain.Fallback{
				LineNo:     lineNo,
				MenuItemID: line.MenuItemID,
				Regime:     res.Regime(),
			})
		}

		totals.Items = append(totals.Items, domain.OrderItem{
			LineNo:          lineNo,
			MenuItemID:      line.MenuItemID,
			ItemName:        name,
			Quantity:        line.Quantity,
			UnitPriceExTax:  amounts.UnitEx,
			UnitPriceIncTax: amounts.UnitInc,
			UnitTaxAmount:   amounts.UnitTax,
			TaxRate:         res.EffectiveRate,
			HSN:             hsn,
			IsPackagedGood:  res.IsPackaged,
			PricingMode:     res.PricingMode(),
			LineTotalExTax:  amounts.LineEx,
			LineTaxAmount:   amounts.LineTax,
			LineTotalIncTax: amounts.LineInc,
			CatalogFallback: !found,
			Price:           line.UnitPrice,
			Notes:           line.Notes,
		})

		totals.SubtotalExTax = totals.SubtotalExTax.Add(amounts.LineEx)
		totals.TotalTax = totals.TotalTax.Add(amounts.LineTax)
		totals.TotalIncTax = totals.TotalIncTax.Add(amounts.LineInc)
	}

	totals.SubtotalExTax = taxdomain.RoundMoney(totals.SubtotalExTax)
	totals.TotalTax = taxdomain.RoundMoney(totals.TotalTax)
	totals.TotalIncTax = taxdomain.RoundMoney(totals.TotalIncTax)

	return totals
}

func lineAttributes(line domain.CartLine, catalog map[snowflake.ID]menudomain.MenuItem) (taxdomain.ItemTaxAttributes, string, string, bool) {
	if item, ok := catalog[line.MenuItemID]; ok {
		return item.TaxAttributes(), item.Name, item.HSN, true
	}
	attrs := taxdomain.ItemTaxAttributes{
		IsPackagedGood: lo.FromPtr(line.IsPackagedGood),
		TaxRate:        lo.FromPtrOr(line.TaxRate, decimal.Zero),
	}
	return attrs, line.Name, line.HSN, false
}
