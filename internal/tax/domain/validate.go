package domain

import "github.com/shopspring/decimal"

// ValidateRate accepts percent rates in [0, 100] with at most two decimals.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(Hundred) {
		return ErrInvalidTaxRate
	}
	if !rate.Equal(rate.Truncate(2)) {
		return ErrTooManyDecimals
	}
	return nil
}

// ValidateAmount accepts non-negative money values with at most two decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrTooManyDecimals
	}
	return nil
}
