package application

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedQuantity = errors.New("quantity must be a positive whole number")
	ErrMissingProduct    = errors.New("missing product name")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrCartUnavailable   = errors.New("cart unavailable")
)

// StockLimitError rejects an add that asks for more than is on hand.
type StockLimitError struct {
	Product   string
	Available int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("only %d units of %s available", e.Available, e.Product)
}
