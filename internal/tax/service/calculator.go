package service

import (
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
)

// ComputeLine splits a line into ex-tax, tax and inc-tax amounts.
//
// Rounding happens on the line figures first; unit figures are derived from
// the rounded line figures so that quantity times unit never drifts from the
// stored line totals by more than a cent per unit.
func ComputeLine(unitPrice decimal.Decimal, quantity int, rate decimal.Decimal, pricesIncludeTax bool) taxdomain.LineAmounts {
	if quantity <= 0 {
		return taxdomain.LineAmounts{
			UnitEx:  decimal.Zero,
			UnitInc: decimal.Zero,
			UnitTax: decimal.Zero,
			LineEx:  decimal.Zero,
			LineTax: decimal.Zero,
			LineInc: decimal.Zero,
		}
	}

	rate = nonNegative(rate)
	qty := decimal.NewFromInt(int64(quantity))
	gross := unitPrice.Mul(qty)

	var lineEx, lineTax, lineInc decimal.Decimal
	if pricesIncludeTax {
		lineInc = gross
		lineEx = gross
		if rate.IsPositive() {
			lineEx = gross.Div(decimal.NewFromInt(1).Add(rate.Div(taxdomain.Hundred)))
		}
		lineTax = lineInc.Sub(lineEx)
	} else {
		lineEx = gross
		lineTax = rate.Div(taxdomain.Hundred).Mul(lineEx)
		lineInc = lineEx.Add(lineTax)
	}

	lineEx = taxdomain.RoundMoney(lineEx)
	lineTax = taxdomain.RoundMoney(lineTax)
	lineInc = taxdomain.RoundMoney(lineInc)

	return taxdomain.LineAmounts{
		UnitEx:  taxdomain.RoundMoney(lineEx.Div(qty)),
		UnitInc: taxdomain.RoundMoney(lineInc.Div(qty)),
		UnitTax: taxdomain.RoundMoney(lineTax.Div(qty)),
		LineEx:  lineEx,
		LineTax: lineTax,
		LineInc: lineInc,
	}
}
