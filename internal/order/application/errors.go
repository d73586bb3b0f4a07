package application

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrTransactionFailed = errors.New("order transaction failed")
	ErrMissingOrderID    = errors.New("missing order id")
	ErrLookupFailed      = errors.New("order lookup failed")
)

// InsufficientStockError lists the products that cannot cover the cart.
type InsufficientStockError struct {
	Products []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for: %s", strings.Join(e.Products, ", "))
}
