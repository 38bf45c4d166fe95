package domain

import "github.com/shopspring/decimal"

// PricingMode records which price-entry convention was applied to a line.
type PricingMode string

const (
	PricingModeInclusive PricingMode = "inclusive" // price already contains tax
	PricingModeExclusive PricingMode = "exclusive" // tax is added on top
)

func ModeFor(pricesIncludeTax bool) PricingMode {
	if pricesIncludeTax {
		return PricingModeInclusive
	}
	return PricingModeExclusive
}

func (m PricingMode) Inclusive() bool { return m == PricingModeInclusive }

func (m PricingMode) Valid() bool {
	return m == PricingModeInclusive || m == PricingModeExclusive
}

// Regime labels which rule produced a line's rate.
const (
	RegimePackaged   = "packaged"
	RegimeService    = "service"
	RegimeServiceOff = "service_no_gst"
)

var (
	Hundred = decimal.NewFromInt(100)
	Cent    = decimal.New(1, -2)
)

// TaxProfile is the restaurant-level setting that governs service lines only.
type TaxProfile struct {
	GSTEnabled       bool
	DefaultTaxRate   decimal.Decimal
	PricesIncludeTax bool
}

// ItemTaxAttributes are the tax-relevant fields of a menu item.
type ItemTaxAttributes struct {
	IsPackagedGood bool
	TaxRate        decimal.Decimal
}

type Resolution struct {
	EffectiveRate    decimal.Decimal
	IsPackaged       bool
	PricesIncludeTax bool
}

func (r Resolution) PricingMode() PricingMode { return ModeFor(r.PricesIncludeTax) }

func (r Resolution) Regime() string {
	switch {
	case r.IsPackaged:
		return RegimePackaged
	case r.EffectiveRate.IsPositive():
		return RegimeService
	default:
		return RegimeServiceOff
	}
}

// LineAmounts are rounded to two decimal places. Unit figures are derived
// from the rounded line figures.
type LineAmounts struct {
	UnitEx  decimal.Decimal
	UnitInc decimal.Decimal
	UnitTax decimal.Decimal
	LineEx  decimal.Decimal
	LineTax decimal.Decimal
	LineInc decimal.Decimal
}

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
