package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidRestaurant  = errors.New("invalid_restaurant")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidHSN         = errors.New("invalid_hsn")
	ErrPackagedRateNeeded = errors.New("packaged_item_requires_tax_rate")
	ErrNotFound           = errors.New("menu_item_not_found")
)
