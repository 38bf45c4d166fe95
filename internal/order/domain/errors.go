package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidRestaurant      = errors.New("invalid_restaurant")
	ErrEmptyCart              = errors.New("empty_cart")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidOrderType       = errors.New("invalid_order_type")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidTransition      = errors.New("invalid_status_transition")
	ErrMissingSubmissionToken = errors.New("missing_submission_token")
	ErrSubmissionInFlight     = errors.New("submission_in_flight")
	ErrNotFound               = errors.New("order_not_found")
)
