package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	orderservice "github.com/smallbiznis/qrdine/internal/order/service"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got.StringFixed(2))
}

// placedOrder prices a cart the way order placement does and returns the
// stored header and items.
func placedOrder(profile taxdomain.TaxProfile, lines []orderdomain.CartLine) (*orderdomain.Order, []orderdomain.OrderItem) {
	catalog := map[snowflake.ID]menudomain.MenuItem{
		1: {ID: 1, Name: "Mineral Water 1L", IsPackagedGood: true, TaxRate: d("18"), HSN: "2201"},
		2: {ID: 2, Name: "Paneer Tikka"},
		3: {ID: 3, Name: "Masala Chai"},
	}
	totals := orderservice.Aggregate(lines, profile, catalog)
	order := &orderdomain.Order{
		ID:               100,
		RestaurantID:     7,
		CustomerName:     "Asha",
		CustomerGSTIN:    "29ABCDE1234F1Z5",
		PaymentMethod:    "upi",
		GSTEnabled:       profile.GSTEnabled,
		PricesIncludeTax: profile.PricesIncludeTax,
		SubtotalExTax:    totals.SubtotalExTax,
		TotalTax:         totals.TotalTax,
		TotalIncTax:      totals.TotalIncTax,
	}
	return order, totals.Items
}

func mixedCart() []orderdomain.CartLine {
	return []orderdomain.CartLine{
		{MenuItemID: 1, Quantity: 2, UnitPrice: d("118")},
		{MenuItemID: 2, Quantity: 3, UnitPrice: d("100")},
		{MenuItemID: 3, Quantity: 3, UnitPrice: d("33.33")},
	}
}

func TestBuildInvoiceReproducesOrderItems(t *testing.T) {
	profiles := []taxdomain.TaxProfile{
		{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: false},
		{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: true},
		{GSTEnabled: false, DefaultTaxRate: d("5"), PricesIncludeTax: true},
		{GSTEnabled: true, DefaultTaxRate: d("18"), PricesIncludeTax: true},
	}

	for _, profile := range profiles {
		order, items := placedOrder(profile, mixedCart())

		draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
		require.NoError(t, err)
		require.Len(t, draft.Lines, len(items))
		assert.True(t, draft.Reconciliation.Matched)
		assert.True(t, draft.Header.Reconciled)
		assert.NotContains(t, draft.Header.Metadata, "reconciliation")

		for i, line := range draft.Lines {
			item := items[i]
			assert.Equal(t, i+1, line.LineNo)
			assert.Equal(t, item.ItemName, line.ItemName)
			assert.Equal(t, item.HSN, line.HSN)
			assert.Equal(t, item.Quantity, line.Qty)
			assert.True(t, item.TaxRate.Equal(line.TaxRate))
			assert.True(t, item.UnitPriceExTax.Equal(line.UnitRateExTax), "unit ex line %d", i+1)
			assert.True(t, item.LineTotalExTax.Equal(line.LineTotalExTax), "line ex %d", i+1)
			assert.True(t, item.LineTaxAmount.Equal(line.TaxAmount), "line tax %d", i+1)
			assert.True(t, item.LineTotalIncTax.Equal(line.LineTotalIncTax), "line inc %d", i+1)
		}

		assert.True(t, order.TotalIncTax.Equal(draft.Header.TotalIncTax))
		assert.True(t, draft.Header.CGST.Add(draft.Header.SGST).Equal(draft.Header.TotalTax))
		assert.True(t, draft.Header.IGST.IsZero())
	}
}

func TestBuildInvoiceIgnoresLaterProfileChange(t *testing.T) {
	order, items := placedOrder(taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: false}, mixedCart())

	before, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)

	// the owner flips the restaurant to GST-off inclusive pricing; stamped rows
	// must not follow
	changed := *order
	changed.GSTEnabled = false
	changed.PricesIncludeTax = true
	after, err := BuildInvoice(&changed, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)

	require.Len(t, after.Lines, len(before.Lines))
	for i := range before.Lines {
		assert.True(t, before.Lines[i].LineTotalExTax.Equal(after.Lines[i].LineTotalExTax))
		assert.True(t, before.Lines[i].TaxAmount.Equal(after.Lines[i].TaxAmount))
		assert.True(t, before.Lines[i].LineTotalIncTax.Equal(after.Lines[i].LineTotalIncTax))
	}
	assert.True(t, before.Header.TotalTax.Equal(after.Header.TotalTax))
	assert.True(t, after.Reconciliation.Matched)
}

func TestBuildInvoiceScenarioHeader(t *testing.T) {
	order, items := placedOrder(taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: false}, []orderdomain.CartLine{
		{MenuItemID: 1, Quantity: 2, UnitPrice: d("118")},
		{MenuItemID: 2, Quantity: 3, UnitPrice: d("100")},
	})

	draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)

	h := draft.Header
	assert.Equal(t, snowflake.ID(100), h.OrderID)
	assert.Equal(t, snowflake.ID(7), h.RestaurantID)
	assert.Equal(t, "Asha", h.CustomerName)
	assert.Equal(t, "29ABCDE1234F1Z5", h.CustomerGSTIN)
	assert.Equal(t, "upi", h.PaymentMethod)
	assertMoney(t, "500.00", h.SubtotalExTax, "subtotal")
	assertMoney(t, "51.00", h.TotalTax, "tax")
	assertMoney(t, "551.00", h.TotalIncTax, "total")
	assertMoney(t, "25.50", h.CGST, "cgst")
	assertMoney(t, "25.50", h.SGST, "sgst")

	assertMoney(t, "100.00", draft.Lines[0].UnitRateExTax, "water unit ex")
	assertMoney(t, "36.00", draft.Lines[0].TaxAmount, "water tax")
}

func TestBuildInvoiceLegacyRows(t *testing.T) {
	order := &orderdomain.Order{
		ID:               1,
		RestaurantID:     1,
		GSTEnabled:       true,
		PricesIncludeTax: true,
	}
	items := []orderdomain.OrderItem{
		{ItemName: "Veg Thali", Quantity: 1, TaxRate: d("5"), Price: d("105")},
		{ItemName: "Soda", Quantity: 2, TaxRate: d("18"), IsPackagedGood: true, Price: d("118")},
	}

	draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)

	assertMoney(t, "100.00", draft.Lines[0].LineTotalExTax, "thali ex")
	assertMoney(t, "5.00", draft.Lines[0].TaxAmount, "thali tax")
	assertMoney(t, "105.00", draft.Lines[0].LineTotalIncTax, "thali inc")
	assertMoney(t, "200.00", draft.Lines[1].LineTotalExTax, "soda ex")
	assertMoney(t, "36.00", draft.Lines[1].TaxAmount, "soda tax")

	// no stored totals: header comes from the recomputed lines
	assertMoney(t, "300.00", draft.Header.SubtotalExTax, "subtotal")
	assertMoney(t, "41.00", draft.Header.TotalTax, "tax")
	assertMoney(t, "341.00", draft.Header.TotalIncTax, "total")
	assert.True(t, draft.Reconciliation.Matched)
}

func TestBuildInvoiceLegacyServiceRowFollowsOrderSnapshot(t *testing.T) {
	items := []orderdomain.OrderItem{{ItemName: "Dosa", Quantity: 2, TaxRate: d("5"), Price: d("100")}}

	exclusive := &orderdomain.Order{GSTEnabled: true, PricesIncludeTax: false}
	draft, err := BuildInvoice(exclusive, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)
	assertMoney(t, "210.00", draft.Lines[0].LineTotalIncTax, "exclusive inc")

	gstOff := &orderdomain.Order{GSTEnabled: false, PricesIncludeTax: true}
	draft, err = BuildInvoice(gstOff, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)
	assertMoney(t, "200.00", draft.Lines[0].LineTotalExTax, "gst off ex")
}

func TestBuildInvoiceStampedModeWithLegacyPriceOnly(t *testing.T) {
	order := &orderdomain.Order{GSTEnabled: true}
	items := []orderdomain.OrderItem{{
		ItemName:    "Lassi",
		Quantity:    1,
		TaxRate:     d("5"),
		PricingMode: taxdomain.PricingModeExclusive,
		Price:       d("60"),
	}}

	draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)
	assertMoney(t, "60.00", draft.Lines[0].LineTotalExTax, "ex")
	assertMoney(t, "63.00", draft.Lines[0].LineTotalIncTax, "inc")
}

func TestBuildInvoiceReportsMismatch(t *testing.T) {
	order, items := placedOrder(taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5")}, mixedCart())
	order.TotalIncTax = order.TotalIncTax.Add(d("0.02"))

	draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{})
	require.NoError(t, err)

	assert.False(t, draft.Reconciliation.Matched)
	assert.False(t, draft.Header.Reconciled)
	assert.True(t, order.TotalIncTax.Equal(draft.Header.TotalIncTax), "stored total must not be overwritten")
	assert.True(t, draft.Reconciliation.StoredIncTax.Sub(draft.Reconciliation.RecomputedIncTax).Equal(d("0.02")))
	require.Contains(t, draft.Header.Metadata, "reconciliation")
	figures := draft.Header.Metadata["reconciliation"].(map[string]any)
	assert.Equal(t, false, figures["matched"])

	tolerant, err := BuildInvoice(order, items, invoicedomain.BuildOptions{Tolerance: d("0.05")})
	require.NoError(t, err)
	assert.True(t, tolerant.Reconciliation.Matched)
}

func TestBuildInvoiceTaxSplit(t *testing.T) {
	cases := map[string][2]string{
		"15.01": {"7.51", "7.50"},
		"0.01":  {"0.01", "0.00"},
		"51.00": {"25.50", "25.50"},
		"0.00":  {"0.00", "0.00"},
	}

	for tax, want := range cases {
		order := &orderdomain.Order{
			SubtotalExTax: d("100"),
			TotalTax:      d(tax),
			TotalIncTax:   d("100").Add(d(tax)),
		}
		items := []orderdomain.OrderItem{{ItemName: "x", Quantity: 1, Price: d("100"), PricingMode: taxdomain.PricingModeExclusive}}

		draft, err := BuildInvoice(order, items, invoicedomain.BuildOptions{Tolerance: d("100")})
		require.NoError(t, err)
		assertMoney(t, want[0], draft.Header.CGST, "cgst "+tax)
		assertMoney(t, want[1], draft.Header.SGST, "sgst "+tax)
		assert.True(t, draft.Header.CGST.Add(draft.Header.SGST).Equal(d(tax)))
	}
}

func TestBuildInvoiceErrors(t *testing.T) {
	_, err := BuildInvoice(nil, []orderdomain.OrderItem{{Quantity: 1}}, invoicedomain.BuildOptions{})
	assert.ErrorIs(t, err, invoicedomain.ErrOrderNotFound)

	_, err = BuildInvoice(&orderdomain.Order{}, nil, invoicedomain.BuildOptions{})
	assert.ErrorIs(t, err, invoicedomain.ErrNoLineItems)
}
