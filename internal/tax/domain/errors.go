package domain

import "errors"

var (
	ErrInvalidTaxRate  = errors.New("invalid_tax_rate")
	ErrNegativeAmount  = errors.New("negative_amount")
	ErrTooManyDecimals = errors.New("too_many_decimal_places")
)
