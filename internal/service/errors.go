package service

import "errors"

// Request-boundary failures. Handlers map these with errors.Is; store and
// gateway sentinels pass through untouched.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("operation not allowed for this user")
	ErrCartEmpty  = errors.New("cart is empty")
)
