package service

import (
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	taxservice "github.com/smallbiznis/qrdine/internal/tax/service"
	"gorm.io/datatypes"
)

var two = decimal.NewFromInt(2)

// BuildInvoice reconstructs invoice lines from stored order items.
//
// Only the figures stamped on the order and its items are read, so the result
// is the same however the restaurant profile or menu changed afterwards. The
// header carries the order's stored totals when present; the recomputed
// totals are compared with them and any difference beyond the tolerance is
// reported, never written over the stored figures.
func BuildInvoice(order *orderdomain.Order, items []orderdomain.OrderItem, opts invoicedomain.BuildOptions) (invoicedomain.Draft, error) {
	if order == nil {
		return invoicedomain.Draft{}, invoicedomain.ErrOrderNotFound
	}
	if len(items) == 0 {
		return invoicedomain.Draft{}, invoicedomain.ErrNoLineItems
	}

	lines := make([]invoicedomain.InvoiceLine, 0, len(items))
	sumEx, sumTax, sumInc := decimal.Zero, decimal.Zero, decimal.Zero
	for i, item := range items {
		mode := pricingMode(*order, item)
		amounts := taxservice.ComputeLine(unitPrice(item, mode), item.Quantity, item.TaxRate, mode.Inclusive())

		lines = append(lines, invoicedomain.InvoiceLine{
			LineNo:          i + 1,
			ItemName:        item.ItemName,
			HSN:             item.HSN,
			Qty:             item.Quantity,
			UnitRateExTax:   amounts.UnitEx,
			TaxRate:         item.TaxRate,
			TaxAmount:       amounts.LineTax,
			LineTotalExTax:  amounts.LineEx,
			LineTotalIncTax: amounts.LineInc,
		})

		sumEx = sumEx.Add(amounts.LineEx)
		sumTax = sumTax.Add(amounts.LineTax)
		sumInc = sumInc.Add(amounts.LineInc)
	}
	sumEx = taxdomain.RoundMoney(sumEx)
	sumTax = taxdomain.RoundMoney(sumTax)
	sumInc = taxdomain.RoundMoney(sumInc)

	rec := invoicedomain.Reconciliation{
		Matched:          true,
		StoredExTax:      order.SubtotalExTax,
		StoredTax:        order.TotalTax,
		StoredIncTax:     order.TotalIncTax,
		RecomputedExTax:  sumEx,
		RecomputedTax:    sumTax,
		RecomputedIncTax: sumInc,
	}

	headerEx, headerTax, headerInc := sumEx, sumTax, sumInc
	if !order.TotalIncTax.IsZero() {
		headerEx, headerTax, headerInc = order.SubtotalExTax, order.TotalTax, order.TotalIncTax
		tolerance := opts.Tolerance.Abs()
		rec.Matched = withinTolerance(order.SubtotalExTax, sumEx, tolerance) &&
			withinTolerance(order.TotalTax, sumTax, tolerance) &&
			withinTolerance(order.TotalIncTax, sumInc, tolerance)
	}

	cgst := taxdomain.RoundMoney(headerTax.Div(two))
	header := invoicedomain.Invoice{
		RestaurantID:     order.RestaurantID,
		OrderID:          order.ID,
		CustomerName:     order.CustomerName,
		CustomerGSTIN:    order.CustomerGSTIN,
		PaymentMethod:    order.PaymentMethod,
		GSTEnabled:       order.GSTEnabled,
		PricesIncludeTax: order.PricesIncludeTax,
		SubtotalExTax:    headerEx,
		TotalTax:         headerTax,
		TotalIncTax:      headerInc,
		CGST:             cgst,
		SGST:             headerTax.Sub(cgst),
		IGST:             decimal.Zero,
		Reconciled:       rec.Matched,
		Metadata:         datatypes.JSONMap{},
	}
	if !rec.Matched {
		header.Metadata["reconciliation"] = rec.Metadata()
	}

	return invoicedomain.Draft{Header: header, Lines: lines, Reconciliation: rec}, nil
}

// pricingMode prefers the convention stamped on the item. Rows written before
// stamping fall back to the packaged rule or the order's profile snapshot.
func pricingMode(order orderdomain.Order, item orderdomain.OrderItem) taxdomain.PricingMode {
	if item.PricingMode.Valid() {
		return item.PricingMode
	}
	if item.IsPackagedGood {
		return taxdomain.PricingModeInclusive
	}
	return taxdomain.ModeFor(order.PricesIncludeTax && order.GSTEnabled)
}

func unitPrice(item orderdomain.OrderItem, mode taxdomain.PricingMode) decimal.Decimal {
	price := item.UnitPriceExTax
	if mode.Inclusive() {
		price = item.UnitPriceIncTax
	}
	if price.IsZero() {
		return item.Price
	}
	return price
}

func withinTolerance(stored, recomputed, tolerance decimal.Decimal) bool {
	return stored.Sub(recomputed).Abs().LessThanOrEqual(tolerance)
}
