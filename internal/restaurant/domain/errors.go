package domain

import "errors"

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidGSTIN = errors.New("invalid_gstin")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrNotFound     = errors.New("restaurant_not_found")
)
