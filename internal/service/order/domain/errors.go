// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderStateConflict = errors.New("order status conflicts with requested transition")
	ErrAddressMissing     = errors.New("shipping address missing")
	ErrCartEmpty          = errors.New("shopping cart is empty")
)
