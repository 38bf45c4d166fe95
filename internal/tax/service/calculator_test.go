package service

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got.StringFixed(2))
}

func TestComputeLineScenarios(t *testing.T) {
	cases := []struct {
		name      string
		item      taxdomain.ItemTaxAttributes
		profile   taxdomain.TaxProfile
		unitPrice string
		qty       int
		wantEx    string
		wantTax   string
		wantInc   string
		wantRate  string
	}{
		{
			name:      "packaged_goods_18_percent",
			item:      taxdomain.ItemTaxAttributes{IsPackagedGood: true, TaxRate: d("18")},
			profile:   taxdomain.TaxProfile{GSTEnabled: false, DefaultTaxRate: d("5")},
			unitPrice: "118",
			qty:       2,
			wantEx:    "200.00",
			wantTax:   "36.00",
			wantInc:   "236.00",
			wantRate:  "18",
		},
		{
			name:      "service_gst_on_exclusive",
			profile:   taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: false},
			unitPrice: "100",
			qty:       3,
			wantEx:    "300.00",
			wantTax:   "15.00",
			wantInc:   "315.00",
			wantRate:  "5",
		},
		{
			name:      "service_gst_off",
			profile:   taxdomain.TaxProfile{GSTEnabled: false, DefaultTaxRate: d("5"), PricesIncludeTax: false},
			unitPrice: "100",
			qty:       3,
			wantEx:    "300.00",
			wantTax:   "0.00",
			wantInc:   "300.00",
			wantRate:  "0",
		},
		{
			name:      "service_gst_on_inclusive",
			profile:   taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: true},
			unitPrice: "105",
			qty:       1,
			wantEx:    "100.00",
			wantTax:   "5.00",
			wantInc:   "105.00",
			wantRate:  "5",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ResolveRate(tc.item, tc.profile)
			assertMoney(t, tc.wantRate, res.EffectiveRate, "rate")

			got := ComputeLine(d(tc.unitPrice), tc.qty, res.EffectiveRate, res.PricesIncludeTax)
			assertMoney(t, tc.wantEx, got.LineEx, "lineEx")
			assertMoney(t, tc.wantTax, got.LineTax, "lineTax")
			assertMoney(t, tc.wantInc, got.LineInc, "lineInc")
		})
	}
}

func TestComputeLineRoundsLineBeforeUnit(t *testing.T) {
	// 3 x 33.33 inclusive of 5%: line first, then back-derive units.
	got := ComputeLine(d("33.33"), 3, d("5"), true)

	assertMoney(t, "99.99", got.LineInc, "lineInc")
	assertMoney(t, "95.23", got.LineEx, "lineEx")
	assertMoney(t, "4.76", got.LineTax, "lineTax")
	assertMoney(t, "33.33", got.UnitInc, "unitInc")
	assertMoney(t, "31.74", got.UnitEx, "unitEx")
	assertMoney(t, "1.59", got.UnitTax, "unitTax")
}

func TestComputeLineNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -2} {
		got := ComputeLine(d("50"), qty, d("5"), false)
		assert.True(t, got.LineInc.IsZero())
		assert.True(t, got.LineEx.IsZero())
		assert.True(t, got.LineTax.IsZero())
		assert.True(t, got.UnitInc.IsZero())
	}
}

func TestComputeLineNegativeRateDegradesToZero(t *testing.T) {
	got := ComputeLine(d("40"), 2, d("-5"), false)
	assertMoney(t, "80", got.LineEx, "lineEx")
	assertMoney(t, "0", got.LineTax, "lineTax")
	assertMoney(t, "80", got.LineInc, "lineInc")
}

func TestComputeLineProperties(t *testing.T) {
	prices := []string{"0.01", "0.99", "9.5", "33.33", "105", "118", "249.99", "1999.95"}
	rates := []string{"0", "3", "5", "12", "18", "28"}
	cent := d("0.01")
	unitTolerance := d("0.02")

	for _, price := range prices {
		for _, rate := range rates {
			for qty := 1; qty <= 7; qty++ {
				name := fmt.Sprintf("%s_x%d_at_%s", price, qty, rate)
				unit := d(price)
				gross := unit.Mul(decimal.NewFromInt(int64(qty)))

				inc := ComputeLine(unit, qty, d(rate), true)
				assert.Truef(t, inc.LineInc.Equal(gross), "%s inclusive round-trip: %s", name, inc.LineInc)
				assert.Truef(t, inc.LineEx.Add(inc.LineTax).Sub(inc.LineInc).Abs().LessThanOrEqual(cent), "%s inclusive split", name)

				exc := ComputeLine(unit, qty, d(rate), false)
				assert.Truef(t, exc.LineEx.Equal(gross), "%s exclusive base: %s", name, exc.LineEx)
				assert.Truef(t, exc.LineEx.Add(exc.LineTax).Equal(exc.LineInc), "%s exclusive sum", name)

				for _, la := range []taxdomain.LineAmounts{inc, exc} {
					drift := la.UnitEx.Add(la.UnitTax).Sub(la.UnitInc).Abs()
					assert.Truef(t, drift.LessThanOrEqual(unitTolerance), "%s unit drift %s", name, drift)
				}
			}
		}
	}
}

// Backing tax out of an inclusive price and adding it back on the derived
// ex-tax price lands within a cent of the original gross. The unit price fed
// back is the unrounded LineEx/qty; the stored UnitEx is rounded per unit and
// only round-trips for single-quantity lines.
func TestComputeLineInclusiveExclusiveRoundTrip(t *testing.T) {
	prices := []string{"0.01", "0.99", "9.5", "33.33", "105", "118", "249.99", "1999.95"}
	rates := []string{"0", "3", "5", "12", "18", "28"}
	cent := d("0.01")

	for _, price := range prices {
		for _, rate := range rates {
			for qty := 1; qty <= 7; qty++ {
				name := fmt.Sprintf("%s_x%d_at_%s", price, qty, rate)

				inc := ComputeLine(d(price), qty, d(rate), true)
				unitEx := inc.LineEx.Div(decimal.NewFromInt(int64(qty)))
				exc := ComputeLine(unitEx, qty, d(rate), false)

				diff := exc.LineInc.Sub(inc.LineInc).Abs()
				assert.Truef(t, diff.LessThanOrEqual(cent), "%s: inclusive %s exclusive %s", name, inc.LineInc, exc.LineInc)

				if qty == 1 {
					single := ComputeLine(inc.UnitEx, 1, d(rate), false)
					assert.Truef(t, single.LineInc.Sub(inc.LineInc).Abs().LessThanOrEqual(cent),
						"%s: stored unit %s gives %s", name, inc.UnitEx, single.LineInc)
				}
			}
		}
	}
}
