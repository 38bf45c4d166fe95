package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrNoLineItems       = errors.New("no_line_items")
	ErrNotFound          = errors.New("invoice_not_found")
)
